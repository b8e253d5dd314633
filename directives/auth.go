package directives

import (
	"context"

	"bitbucket.org/greenops/fieldops_backend/middlewares"
	"bitbucket.org/greenops/fieldops_backend/utils"
	"github.com/99designs/gqlgen/graphql"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

// Auth admits requests whose bearer token was accepted by AuthMiddleware.
// Tokens without a client are admitted only for admins.
func Auth(ctx context.Context, obj interface{}, next graphql.Resolver) (interface{}, error) {
	claim := middlewares.CtxValue(ctx)
	if claim == nil {
		return nil, &gqlerror.Error{
			Message:    "Access Denied",
			Extensions: map[string]interface{}{"code": "UNAUTHENTICATED", "status": 401},
		}
	}

	isAdmin, _ := utils.GetIsAdminFromContext(ctx)
	if clientId, _ := utils.GetClientIdFromContext(ctx); clientId == "" && !isAdmin {
		return nil, &gqlerror.Error{
			Message:    "Unauthorized",
			Extensions: map[string]interface{}{"code": "FORBIDDEN", "status": 403},
		}
	}
	return next(ctx)
}
