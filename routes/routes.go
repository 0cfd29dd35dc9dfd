package routes

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/cors"

	"github.com/marcus-crane/soloist/events"
	"github.com/marcus-crane/soloist/history"
	"github.com/marcus-crane/soloist/playback"
	"github.com/marcus-crane/soloist/server"
)

func renderJSONMessage(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	res := map[string]string{"message": message}
	json.NewEncoder(w).Encode(res)
}

func Register(mux *http.ServeMux, sync *server.Server, engine *playback.Engine, store *history.Store) http.Handler {

	events.Server.CreateStream("desktop")

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, "Welcome to Soloist. It keeps exactly one thing playing at a time.\n")
	})

	mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		renderJSONMessage(w, "ok")
	})

	mux.Handle("/ws", sync)

	mux.HandleFunc("/api/v1/state", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(engine.State())
	})

	mux.HandleFunc("/api/v1/history", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if store == nil {
			json.NewEncoder(w).Encode([]history.Transition{})
			return
		}
		results, err := store.GetHistory(20)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			renderJSONMessage(w, "failed to load history")
			return
		}
		json.NewEncoder(w).Encode(results)
	})

	mux.HandleFunc("/events", events.Server.ServeHTTP)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET"},
		AllowedHeaders: []string{"Origin, Content-Type, Accept"},
	})

	handler := c.Handler(mux)

	return handler
}
