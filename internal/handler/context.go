package handler

import "net/http"

type ContextKey string

var ClientIDCtx ContextKey = "clientID"

func clientIDFrom(r *http.Request) string {
	return r.Context().Value(ClientIDCtx).(string)
}
