package internal

import (
	"github.com/go-kit/kit/endpoint"
	"golang.org/x/net/context"

	"github.com/derWhity/gustavo/internal/ctxhelper"
)

// eventScoped is implemented by all request types that target one specific event. The middleware
// uses it to match the request against the event the session token was issued for
type eventScoped interface {
	eventID() string
}

// EnsureEventSession is a middleware that checks that the current call carries a valid event
// session - and that the session belongs to the event the request targets. A token issued for one
// event is worthless at every other event
func EnsureEventSession(next endpoint.Endpoint) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		sess := ctxhelper.Session(ctx)
		if sess == nil {
			// Nobody joined
			return nil, ErrNotJoined
		}
		if req, ok := request.(eventScoped); ok && req.eventID() != sess.EventID {
			return nil, ErrEventAccessDenied
		}
		return next(ctx, request)
	}
}
