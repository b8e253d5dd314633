package config

import (
	"context"
	"errors"
	"reflect"
	"strings"

	"bitbucket.org/greenops/fieldops_backend/appctx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

const clientColumn = "client_id"

// ErrForeignClient rejects rows written on behalf of another client.
var ErrForeignClient = errors.New("row belongs to another client")

// ClientScope returns the client a request is confined to. Admin requests,
// internal jobs with the skip flag and requests without a client are not
// scoped.
func ClientScope(ctx context.Context) (clientId string, scoped bool) {
	if ctx == nil {
		return "", false
	}
	if skip, _ := ctx.Value(appctx.ContextKeySkipClientScope).(bool); skip {
		return "", false
	}
	if isAdmin, _ := ctx.Value(appctx.ContextKeyIsAdmin).(bool); isAdmin {
		return "", false
	}
	clientId, _ = ctx.Value(appctx.ContextKeyClientId).(string)
	return clientId, clientId != ""
}

// ClientGuardPlugin confines every statement on a table with a client_id
// column to the request's client: reads, updates and deletes get a
// client_id filter, and creates are stamped with the client or rejected
// when they name another one. Raw SQL is not guarded.
type ClientGuardPlugin struct{}

func NewClientGuardPlugin() *ClientGuardPlugin { return &ClientGuardPlugin{} }

func (p *ClientGuardPlugin) Name() string { return "client_guard" }

func (p *ClientGuardPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	if err := cb.Create().Before("gorm:create").Register("client_guard:create", stampClient); err != nil {
		return err
	}
	if err := cb.Query().Before("gorm:query").Register("client_guard:query", filterClient); err != nil {
		return err
	}
	if err := cb.Row().Before("gorm:row").Register("client_guard:row", filterClient); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:update").Register("client_guard:update", filterClient); err != nil {
		return err
	}
	return cb.Delete().Before("gorm:delete").Register("client_guard:delete", filterClient)
}

// clientField returns the client_id field of the statement's model, if any.
func clientField(db *gorm.DB) (*schema.Field, string, bool) {
	if db == nil || db.Statement == nil || db.Statement.Schema == nil {
		return nil, "", false
	}
	clientId, scoped := ClientScope(db.Statement.Context)
	if !scoped {
		return nil, "", false
	}
	field := db.Statement.Schema.LookUpField(clientColumn)
	if field == nil {
		return nil, "", false
	}
	return field, clientId, true
}

func filterClient(db *gorm.DB) {
	_, clientId, ok := clientField(db)
	if !ok || whereHasClientID(db.Statement.Clauses["WHERE"]) {
		return
	}
	db.Statement.AddClause(clause.Where{Exprs: []clause.Expression{
		clause.Eq{Column: clause.Column{Table: db.Statement.Table, Name: clientColumn}, Value: clientId},
	}})
}

func stampClient(db *gorm.DB) {
	field, clientId, ok := clientField(db)
	if !ok {
		return
	}
	ctx := db.Statement.Context
	stamp := func(row reflect.Value) {
		value, zero := field.ValueOf(ctx, row)
		if zero {
			if err := field.Set(ctx, row, clientId); err != nil {
				_ = db.AddError(err)
			}
			return
		}
		if owner, _ := value.(string); owner != clientId {
			_ = db.AddError(ErrForeignClient)
		}
	}

	rv := reflect.Indirect(db.Statement.ReflectValue)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if row := reflect.Indirect(rv.Index(i)); row.Kind() == reflect.Struct {
				stamp(row)
			}
		}
	case reflect.Struct:
		stamp(rv)
	}
}

// whereHasClientID reports an explicit client filter already on the statement.
func whereHasClientID(c clause.Clause) bool {
	w, ok := c.Expression.(clause.Where)
	if !ok {
		return false
	}
	for _, e := range w.Exprs {
		if exprHasClientID(e) {
			return true
		}
	}
	return false
}

func exprHasClientID(e clause.Expression) bool {
	var nested []clause.Expression
	switch v := e.(type) {
	case clause.Eq:
		return isClientColumn(v.Column)
	case clause.Neq:
		return isClientColumn(v.Column)
	case clause.IN:
		return isClientColumn(v.Column)
	case clause.Expr:
		return strings.Contains(strings.ToLower(v.SQL), clientColumn)
	case clause.AndConditions:
		nested = v.Exprs
	case clause.OrConditions:
		nested = v.Exprs
	}
	for _, x := range nested {
		if exprHasClientID(x) {
			return true
		}
	}
	return false
}

func isClientColumn(col any) bool {
	switch c := col.(type) {
	case string:
		return strings.EqualFold(c, clientColumn)
	case clause.Column:
		return strings.EqualFold(c.Name, clientColumn)
	}
	return false
}
