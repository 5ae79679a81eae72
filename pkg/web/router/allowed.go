package router

import (
	"fmt"
	"net/http"
	"strings"
)

// AllowedMethods returns net/http middleware answering requests whose path
// has routes but not for the request verb: OPTIONS gets 200 with an Allow
// header, unimplemented verbs get 501 and other verbs 405.
func (r *Router) AllowedMethods() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			allowed := r.Allowed(req.URL.Path)
			if len(allowed) == 0 || contains(allowed, req.Method) {
				next.ServeHTTP(w, req)
				return
			}

			if !contains(r.options.Methods, req.Method) {
				WriteError(w, http.StatusNotImplemented, "NOT_IMPLEMENTED",
					fmt.Sprintf("Method %s is not implemented", req.Method))
				return
			}

			w.Header().Set("Allow", strings.Join(allowed, ", "))
			if req.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			MethodNotAllowedHandler(allowed)(w, req)
		})
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
