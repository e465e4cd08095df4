package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mariogenie/genie-chat/internal/common"
	"github.com/mariogenie/genie-chat/internal/event"
	"github.com/mariogenie/genie-chat/internal/token"
)

const ActorKey = "actor"

// Identity resolves the caller from the headers the platform proxy sets
// on every authenticated request. Outside production an empty identity
// falls back to a dev user so the app is usable without the proxy.
// When the proxy forwards the caller's access token it replaces the
// explicit credential in tokens, keeping downstream query-service calls
// on a fresh per-user bearer.
func Identity(environment string, tokens *token.Source) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokens != nil {
			if t := c.GetHeader("X-Forwarded-Access-Token"); t != "" {
				tokens.Set(t)
			}
		}

		actor := event.Actor{
			UserID: c.GetHeader("X-Forwarded-User"),
			Email:  c.GetHeader("X-Forwarded-Email"),
			Name:   c.GetHeader("X-Forwarded-Preferred-Username"),
		}
		if actor.UserID == "" && actor.Email != "" {
			actor.UserID = actor.Email
		}
		if actor.UserID == "" {
			if environment == "production" {
				common.Fail(c, http.StatusUnauthorized, 40100, "missing identity headers")
				c.Abort()
				return
			}
			actor = event.Actor{UserID: "dev-user", Email: "dev@localhost", Name: "Dev User"}
		}
		c.Set(ActorKey, actor)
		c.Next()
	}
}

// Actor pulls the resolved caller out of the context. The bool is false
// only on routes that skipped Identity.
func Actor(c *gin.Context) (event.Actor, bool) {
	v, ok := c.Get(ActorKey)
	if !ok {
		return event.Actor{}, false
	}
	actor, ok := v.(event.Actor)
	return actor, ok
}
