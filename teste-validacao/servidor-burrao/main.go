package main

import (
	"fmt"
	"net/http"
	"time"
)

// Upstream burrinho para validar o gateway na mão: um endpoint rápido e um
// lento (para ver a fila de admissão segurando as chamadas).
func main() {
	http.HandleFunc("/painel", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "<h1>Painel</h1><p>Requisição recebida com sucesso!</p>")
		fmt.Println("Log: alguém acessou /painel")
	})
	http.HandleFunc("/lento", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
		fmt.Fprintln(w, "demorou, mas chegou")
		fmt.Println("Log: alguém acessou /lento")
	})
	fmt.Println("Servidor rodando em http://localhost:8081")
	err := http.ListenAndServe(":8081", nil)
	if err != nil {
		fmt.Printf("Erro ao subir o servidor: %s\n", err)
	}
}
