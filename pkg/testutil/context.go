package testutil

import (
	"net/http"

	id "proposals/pkg/domain"
	"proposals/pkg/requestcontext"
)

// AsCaller attaches caller to the request the way the auth middleware does
// after a valid token.
func AsCaller(req *http.Request, caller id.Caller) *http.Request {
	return req.WithContext(requestcontext.WithCaller(req.Context(), caller))
}
