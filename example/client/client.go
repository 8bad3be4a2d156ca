package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

var (
	idvar     string
	secretvar string
	portvar   int
	authvar   string
)

func init() {
	flag.StringVar(&idvar, "i", "222222", "The client id")
	flag.StringVar(&secretvar, "s", "22222222", "The client secret")
	flag.IntVar(&portvar, "p", 9094, "the port this client listens on")
	flag.StringVar(&authvar, "a", "http://localhost:9096", "authorization server base url")
}

func main() {
	flag.Parse()

	config := oauth2.Config{
		ClientID:     idvar,
		ClientSecret: secretvar,
		Scopes:       []string{"read", "write"},
		RedirectURL:  fmt.Sprintf("http://localhost:%d/oauth2", portvar),
		Endpoint: oauth2.Endpoint{
			AuthURL:  authvar + "/oauth/authorize",
			TokenURL: authvar + "/oauth/token",
		},
	}

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		u := config.AuthCodeURL("xyz")
		http.Redirect(w, r, u, http.StatusFound)
	})

	http.HandleFunc("/oauth2", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		state := r.Form.Get("state")
		if state != "xyz" {
			http.Error(w, "State invalid", http.StatusBadRequest)
			return
		}
		code := r.Form.Get("code")
		if code == "" {
			http.Error(w, "Code not found", http.StatusBadRequest)
			return
		}
		token, err := config.Exchange(context.Background(), code)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		e := json.NewEncoder(w)
		e.SetIndent("", "  ")
		e.Encode(token)
	})

	http.HandleFunc("/refresh", func(w http.ResponseWriter, r *http.Request) {
		tok := &oauth2.Token{RefreshToken: r.FormValue("refresh_token"), Expiry: time.Now()}
		token, err := config.TokenSource(context.Background(), tok).Token()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		e := json.NewEncoder(w)
		e.SetIndent("", "  ")
		e.Encode(token)
	})

	log.Printf("Client is running at %d port. Please open http://localhost:%d", portvar, portvar)
	log.Fatal(http.ListenAndServe(fmt.Sprintf(":%d", portvar), nil))
}
