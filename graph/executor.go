package graph

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/99designs/gqlgen/graphql"
	"github.com/99designs/gqlgen/graphql/introspection"
	"github.com/shopspring/decimal"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

//go:embed schema.graphqls
var sourceData string

var parsedSchema = gqlparser.MustLoadSchema(&ast.Source{Name: "schema.graphqls", Input: sourceData})

type Config struct {
	Resolvers  ResolverRoot
	Directives DirectiveRoot
}

type ResolverRoot interface {
	Mutation() MutationResolver
	Query() QueryResolver
}

type DirectiveRoot struct {
	Auth func(ctx context.Context, obj interface{}, next graphql.Resolver) (res interface{}, err error)
}

// fieldFunc resolves one root field from its coerced arguments.
type fieldFunc func(ctx context.Context, args map[string]interface{}) (interface{}, error)

type executableSchema struct {
	schema     *ast.Schema
	directives DirectiveRoot
	query      map[string]fieldFunc
	mutation   map[string]fieldFunc
}

// NewExecutableSchema serves schema.graphqls with the given resolvers. Root
// fields are dispatched to the resolvers and their results are projected
// onto the selection set by field name.
func NewExecutableSchema(cfg Config) graphql.ExecutableSchema {
	return &executableSchema{
		schema:     parsedSchema,
		directives: cfg.Directives,
		query:      queryFields(cfg.Resolvers.Query()),
		mutation:   mutationFields(cfg.Resolvers.Mutation()),
	}
}

func (e *executableSchema) Schema() *ast.Schema {
	return e.schema
}

func (e *executableSchema) Complexity(typeName, field string, childComplexity int, rawArgs map[string]interface{}) (int, bool) {
	return 0, false
}

func (e *executableSchema) Exec(ctx context.Context) graphql.ResponseHandler {
	opCtx := graphql.GetOperationContext(ctx)
	var (
		root   *ast.Definition
		fields map[string]fieldFunc
	)
	switch opCtx.Operation.Operation {
	case ast.Query:
		root, fields = e.schema.Query, e.query
	case ast.Mutation:
		root, fields = e.schema.Mutation, e.mutation
	default:
		return graphql.OneShot(graphql.ErrorResponse(ctx, "unsupported GraphQL operation"))
	}
	return graphql.OneShot(&graphql.Response{Data: e.execRoot(ctx, opCtx, root, fields)})
}

// execRoot resolves the root selection in order. Mutations therefore run
// serially.
func (e *executableSchema) execRoot(ctx context.Context, opCtx *graphql.OperationContext, root *ast.Definition, resolvers map[string]fieldFunc) json.RawMessage {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range graphql.CollectFields(opCtx, opCtx.Operation.SelectionSet, []string{root.Name}) {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeKey(&buf, field.Alias)
		if field.Name == "__typename" {
			writeString(&buf, root.Name)
			continue
		}
		value, ok := e.resolveRootField(ctx, opCtx, root, field, resolvers)
		if !ok {
			if field.Definition != nil && field.Definition.Type.NonNull {
				return json.RawMessage("null")
			}
			buf.WriteString("null")
			continue
		}
		e.marshal(opCtx, &buf, field.Selections, field.Definition.Type, reflect.ValueOf(value))
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

func (e *executableSchema) resolveRootField(ctx context.Context, opCtx *graphql.OperationContext, root *ast.Definition, field graphql.CollectedField, resolvers map[string]fieldFunc) (interface{}, bool) {
	fc := &graphql.FieldContext{
		Object:     root.Name,
		Field:      field,
		Args:       field.ArgumentMap(opCtx.Variables),
		IsMethod:   true,
		IsResolver: true,
	}
	ctx = graphql.WithFieldContext(ctx, fc)

	var next graphql.Resolver
	switch field.Name {
	case "__schema":
		next = func(ctx context.Context) (interface{}, error) {
			if opCtx.DisableIntrospection {
				return nil, fmt.Errorf("introspection disabled")
			}
			return introspection.WrapSchema(e.schema), nil
		}
	case "__type":
		next = func(ctx context.Context) (interface{}, error) {
			name, _ := fc.Args["name"].(string)
			def := e.schema.Types[name]
			if opCtx.DisableIntrospection || def == nil {
				return nil, nil
			}
			return introspection.WrapTypeFromDef(e.schema, def), nil
		}
	default:
		resolve, ok := resolvers[field.Name]
		if !ok {
			graphql.AddError(ctx, fmt.Errorf("unknown field %s.%s", root.Name, field.Name))
			return nil, false
		}
		next = func(ctx context.Context) (interface{}, error) {
			return resolve(ctx, fc.Args)
		}
		if field.Definition.Directives.ForName("auth") != nil && e.directives.Auth != nil {
			inner := next
			next = func(ctx context.Context) (interface{}, error) {
				return e.directives.Auth(ctx, nil, inner)
			}
		}
	}

	res, err := runResolver(ctx, opCtx, next)
	if err != nil {
		graphql.AddError(ctx, err)
		return nil, false
	}
	fc.Result = res
	return res, true
}

// runResolver passes next through the handler's field middleware and turns
// panics into errors.
func runResolver(ctx context.Context, opCtx *graphql.OperationContext, next graphql.Resolver) (res interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			recoverFunc := opCtx.RecoverFunc
			if recoverFunc == nil {
				recoverFunc = graphql.DefaultRecover
			}
			res, err = nil, recoverFunc(ctx, r)
		}
	}()
	if opCtx.ResolverMiddleware == nil {
		return next(ctx)
	}
	return opCtx.ResolverMiddleware(ctx, next)
}

func (e *executableSchema) marshal(opCtx *graphql.OperationContext, buf *bytes.Buffer, sel ast.SelectionSet, typ *ast.Type, v reflect.Value) {
	v = indirect(v)
	if !v.IsValid() {
		buf.WriteString("null")
		return
	}
	if typ.Elem != nil {
		if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
			buf.WriteString("null")
			return
		}
		buf.WriteByte('[')
		for i := 0; i < v.Len(); i++ {
			if i > 0 {
				buf.WriteByte(',')
			}
			e.marshal(opCtx, buf, sel, typ.Elem, v.Index(i))
		}
		buf.WriteByte(']')
		return
	}
	def := e.schema.Types[typ.NamedType]
	if def == nil {
		buf.WriteString("null")
		return
	}
	switch def.Kind {
	case ast.Object, ast.Interface, ast.Union:
		e.marshalObject(opCtx, buf, def, sel, v)
	default:
		marshalLeaf(buf, v)
	}
}

func (e *executableSchema) marshalObject(opCtx *graphql.OperationContext, buf *bytes.Buffer, def *ast.Definition, sel ast.SelectionSet, v reflect.Value) {
	if !v.CanAddr() {
		addressable := reflect.New(v.Type()).Elem()
		addressable.Set(v)
		v = addressable
	}
	buf.WriteByte('{')
	for i, field := range graphql.CollectFields(opCtx, sel, []string{def.Name}) {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeKey(buf, field.Alias)
		if field.Name == "__typename" {
			writeString(buf, def.Name)
			continue
		}
		value := lookupField(v, field.Name, field.ArgumentMap(opCtx.Variables))
		e.marshal(opCtx, buf, field.Selections, field.Definition.Type, value)
	}
	buf.WriteByte('}')
}

// lookupField finds a GraphQL field on an addressable struct: first an
// exported field whose json tag or name matches, then a method named after
// the field. A bool parameter of the method receives the field's bool
// argument, as with includeDeprecated.
func lookupField(v reflect.Value, name string, args map[string]interface{}) reflect.Value {
	if v.Kind() == reflect.Map && v.Type().Key().Kind() == reflect.String {
		return v.MapIndex(reflect.ValueOf(name).Convert(v.Type().Key()))
	}
	if v.Kind() != reflect.Struct {
		return reflect.Value{}
	}
	want := normalizeName(name)
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() || sf.Anonymous {
			continue
		}
		tag, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
		if tag == "-" {
			continue
		}
		if (tag != "" && normalizeName(tag) == want) || normalizeName(sf.Name) == want {
			return v.Field(i)
		}
	}

	method := v.Addr().MethodByName(upperFirst(name))
	if !method.IsValid() {
		return reflect.Value{}
	}
	mt := method.Type()
	if mt.NumOut() == 0 || mt.IsVariadic() {
		return reflect.Value{}
	}
	in := make([]reflect.Value, mt.NumIn())
	for i := range in {
		in[i] = reflect.Zero(mt.In(i))
		if mt.In(i).Kind() == reflect.Bool {
			for _, arg := range args {
				if b, ok := arg.(bool); ok {
					in[i] = reflect.ValueOf(b)
					break
				}
			}
		}
	}
	out := method.Call(in)
	if len(out) == 2 && !out[1].IsNil() {
		return reflect.Value{}
	}
	return out[0]
}

func marshalLeaf(buf *bytes.Buffer, v reflect.Value) {
	if !v.CanInterface() {
		buf.WriteString("null")
		return
	}
	switch x := v.Interface().(type) {
	case decimal.Decimal:
		MarshalDecimal(x).MarshalGQL(buf)
		return
	case time.Time:
		graphql.MarshalTime(x).MarshalGQL(buf)
		return
	case graphql.Marshaler:
		x.MarshalGQL(buf)
		return
	case fmt.Stringer:
		writeString(buf, x.String())
		return
	}
	b, err := json.Marshal(v.Interface())
	if err != nil {
		buf.WriteString("null")
		return
	}
	buf.Write(b)
}

func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func normalizeName(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, "_", ""))
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func writeKey(buf *bytes.Buffer, key string) {
	writeString(buf, key)
	buf.WriteByte(':')
}

func writeString(buf *bytes.Buffer, s string) {
	b, _ := json.Marshal(s)
	buf.Write(b)
}
