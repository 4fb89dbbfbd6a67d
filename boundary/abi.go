package boundary

import (
	"context"
	"fmt"
	"strings"

	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"

	"github.com/nickjmiller/floneum/errors"
	"github.com/nickjmiller/floneum/host"
)

// Param is one parameter of a host function, typed in WIT.
type Param struct {
	Name string
	Type string
}

// Function describes one host function: its WIT-level signature and the
// adapter operation behind it. Result is the type written through retptr, or
// empty when the function only reports a status.
//
// Invoke takes and returns Go values by WIT type: host.ID for handle and for
// a created u64, uint32, bool, string, []float32, []string, [][]float32, and
// []host.ID for list<u64>.
type Function struct {
	Name   string
	Doc    string
	Params []Param
	Result string
	Invoke func(ctx context.Context, a *host.Adapter, args []any) (any, error)

	// release drops handles this function created when the guest cannot
	// receive them.
	release func(a *host.Adapter, id host.ID) error
}

// handleName is the WIT record every resource handle is lowered from.
const handleName = "handle"

var handleType = &wit.TypeDef{
	Name: ptrTo(handleName),
	Kind: &wit.Record{
		Fields: []wit.Field{
			{Name: "id", Type: wit.U64{}},
			{Name: "owned", Type: wit.Bool{}},
		},
	},
}

func ptrTo(s string) *string { return &s }

// ParseType parses the WIT types used by the host ABI: primitives,
// list<T> and the handle record.
func ParseType(s string) (wit.Type, error) {
	s = strings.TrimSpace(s)
	if s == handleName {
		return handleType, nil
	}
	if inner, ok := strings.CutPrefix(s, "list<"); ok {
		inner, ok = strings.CutSuffix(inner, ">")
		if !ok {
			return nil, fmt.Errorf("unterminated list type %q", s)
		}
		elem, err := ParseType(inner)
		if err != nil {
			return nil, err
		}
		return &wit.TypeDef{Kind: &wit.List{Type: elem}}, nil
	}
	return wit.ParseType(s)
}

// TypeString renders a type accepted by ParseType.
func TypeString(t wit.Type) string {
	switch v := t.(type) {
	case wit.Bool:
		return "bool"
	case wit.U32:
		return "u32"
	case wit.U64:
		return "u64"
	case wit.F32:
		return "f32"
	case wit.String:
		return "string"
	case *wit.TypeDef:
		if v.Name != nil {
			return *v.Name
		}
		if l, ok := v.Kind.(*wit.List); ok {
			return "list<" + TypeString(l.Type) + ">"
		}
	}
	return fmt.Sprintf("%T", t)
}

// lowerType returns the core value types a parameter of type t occupies.
func lowerType(t wit.Type) ([]api.ValueType, error) {
	switch v := t.(type) {
	case wit.Bool, wit.U32:
		return []api.ValueType{api.ValueTypeI32}, nil
	case wit.String:
		return []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, nil
	case *wit.TypeDef:
		if v == handleType {
			return []api.ValueType{api.ValueTypeI64, api.ValueTypeI32}, nil
		}
		if _, ok := v.Kind.(*wit.List); ok {
			return []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, nil
		}
	}
	return nil, fmt.Errorf("type %s cannot be passed as a parameter", TypeString(t))
}

// Signature returns the core parameter types and names of fn. Every
// function returns a single i32 status.
func (fn *Function) Signature() ([]api.ValueType, []string, error) {
	var types []api.ValueType
	var names []string
	for _, p := range fn.Params {
		t, err := ParseType(p.Type)
		if err != nil {
			return nil, nil, err
		}
		vts, err := lowerType(t)
		if err != nil {
			return nil, nil, err
		}
		types = append(types, vts...)
		switch len(vts) {
		case 1:
			names = append(names, p.Name)
		default:
			if t == handleType {
				names = append(names, p.Name+"-id", p.Name+"-owned")
			} else {
				names = append(names, p.Name+"-ptr", p.Name+"-len")
			}
		}
	}
	if fn.Result != "" {
		if _, err := ParseType(fn.Result); err != nil {
			return nil, nil, err
		}
		types = append(types, api.ValueTypeI32)
		names = append(names, "retptr")
	}
	return types, names, nil
}

// Functions lists the host ABI in export order.
var Functions = []Function{
	{
		Name:   "model-new",
		Doc:    "Create a model by catalog name. Weights load lazily on first use.",
		Params: []Param{{"name", "string"}},
		Result: "u64",
		Invoke: func(ctx context.Context, a *host.Adapter, args []any) (any, error) {
			return a.CreateModel(ctx, args[0].(string))
		},
		release: (*host.Adapter).DropModel,
	},
	{
		Name:   "model-loaded",
		Doc:    "Report whether the model's backend has been loaded.",
		Params: []Param{{"model", handleName}},
		Result: "bool",
		Invoke: func(ctx context.Context, a *host.Adapter, args []any) (any, error) {
			return a.ModelLoaded(ctx, args[0].(host.ID))
		},
	},
	{
		Name: "model-infer",
		Doc:  "Generate text from a prompt, stopping at max-tokens or stop-on.",
		Params: []Param{
			{"model", handleName},
			{"prompt", "string"},
			{"max-tokens", "u32"},
			{"stop-on", "string"},
		},
		Result: "string",
		Invoke: func(ctx context.Context, a *host.Adapter, args []any) (any, error) {
			return a.Infer(ctx, args[0].(host.ID), args[1].(string), args[2].(uint32), args[3].(string))
		},
	},
	{
		Name:   "model-embed",
		Doc:    "Embed text with an embedding model.",
		Params: []Param{{"model", handleName}, {"text", "string"}},
		Result: "list<f32>",
		Invoke: func(ctx context.Context, a *host.Adapter, args []any) (any, error) {
			return a.Embed(ctx, args[0].(host.ID), args[1].(string))
		},
	},
	{
		Name:   "model-drop",
		Doc:    "Release an owned model.",
		Params: []Param{{"model", handleName}},
		Invoke: func(ctx context.Context, a *host.Adapter, args []any) (any, error) {
			return nil, a.DropModel(args[0].(host.ID))
		},
	},
	{
		Name: "embedding-db-new",
		Doc:  "Create an embedding database seeded with pairs of embeddings and documents.",
		Params: []Param{
			{"embeddings", "list<list<f32>>"},
			{"documents", "list<string>"},
		},
		Result: "u64",
		Invoke: func(ctx context.Context, a *host.Adapter, args []any) (any, error) {
			return a.CreateEmbeddingDb(ctx, args[0].([][]float32), args[1].([]string))
		},
		release: (*host.Adapter).DropEmbeddingDb,
	},
	{
		Name: "embedding-db-add",
		Doc:  "Add one embedding and its document.",
		Params: []Param{
			{"db", handleName},
			{"embedding", "list<f32>"},
			{"document", "string"},
		},
		Invoke: func(ctx context.Context, a *host.Adapter, args []any) (any, error) {
			return nil, a.AddEmbedding(ctx, args[0].(host.ID), args[1].([]float32), args[2].(string))
		},
	},
	{
		Name: "embedding-db-add-document",
		Doc:  "Embed a document with a model and add it.",
		Params: []Param{
			{"db", handleName},
			{"model", handleName},
			{"document", "string"},
		},
		Invoke: func(ctx context.Context, a *host.Adapter, args []any) (any, error) {
			return nil, a.AddDocument(ctx, args[0].(host.ID), args[1].(host.ID), args[2].(string))
		},
	},
	{
		Name: "embedding-db-add-documents",
		Doc:  "Embed documents in parallel and add all of them, or none on any failure.",
		Params: []Param{
			{"db", handleName},
			{"model", handleName},
			{"documents", "list<string>"},
		},
		Invoke: func(ctx context.Context, a *host.Adapter, args []any) (any, error) {
			return nil, a.AddDocuments(ctx, args[0].(host.ID), args[1].(host.ID), args[2].([]string))
		},
	},
	{
		Name: "embedding-db-find",
		Doc:  "Return the documents of the count nearest embeddings, closest first.",
		Params: []Param{
			{"db", handleName},
			{"search", "list<f32>"},
			{"count", "u32"},
		},
		Result: "list<string>",
		Invoke: func(ctx context.Context, a *host.Adapter, args []any) (any, error) {
			return a.FindClosestDocuments(ctx, args[0].(host.ID), args[1].([]float32), args[2].(uint32))
		},
	},
	{
		Name:   "embedding-db-drop",
		Doc:    "Release an owned embedding database.",
		Params: []Param{{"db", handleName}},
		Invoke: func(ctx context.Context, a *host.Adapter, args []any) (any, error) {
			return nil, a.DropEmbeddingDb(args[0].(host.ID))
		},
	},
	{
		Name:   "page-new",
		Doc:    "Fetch a page from the configured source.",
		Params: []Param{{"url", "string"}},
		Result: "u64",
		Invoke: func(ctx context.Context, a *host.Adapter, args []any) (any, error) {
			return a.CreatePage(ctx, args[0].(string))
		},
		release: (*host.Adapter).DropPage,
	},
	{
		Name:   "page-title",
		Params: []Param{{"page", handleName}},
		Result: "string",
		Invoke: func(ctx context.Context, a *host.Adapter, args []any) (any, error) {
			return a.PageTitle(ctx, args[0].(host.ID))
		},
	},
	{
		Name:   "page-text",
		Params: []Param{{"page", handleName}},
		Result: "string",
		Invoke: func(ctx context.Context, a *host.Adapter, args []any) (any, error) {
			return a.PageText(ctx, args[0].(host.ID))
		},
	},
	{
		Name:   "page-root",
		Doc:    "Create an owned node for the page's root element.",
		Params: []Param{{"page", handleName}},
		Result: "u64",
		Invoke: func(ctx context.Context, a *host.Adapter, args []any) (any, error) {
			return a.PageRoot(ctx, args[0].(host.ID))
		},
		release: (*host.Adapter).DropNode,
	},
	{
		Name:   "page-drop",
		Params: []Param{{"page", handleName}},
		Invoke: func(ctx context.Context, a *host.Adapter, args []any) (any, error) {
			return nil, a.DropPage(args[0].(host.ID))
		},
	},
	{
		Name:   "node-tag",
		Params: []Param{{"node", handleName}},
		Result: "string",
		Invoke: func(ctx context.Context, a *host.Adapter, args []any) (any, error) {
			return a.NodeTag(ctx, args[0].(host.ID))
		},
	},
	{
		Name:   "node-text",
		Doc:    "Text of the node and its descendants.",
		Params: []Param{{"node", handleName}},
		Result: "string",
		Invoke: func(ctx context.Context, a *host.Adapter, args []any) (any, error) {
			return a.NodeText(ctx, args[0].(host.ID))
		},
	},
	{
		Name:   "node-children",
		Doc:    "Create an owned node for each child element.",
		Params: []Param{{"node", handleName}},
		Result: "list<u64>",
		Invoke: func(ctx context.Context, a *host.Adapter, args []any) (any, error) {
			return a.NodeChildren(ctx, args[0].(host.ID))
		},
		release: (*host.Adapter).DropNode,
	},
	{
		Name:   "node-drop",
		Params: []Param{{"node", handleName}},
		Invoke: func(ctx context.Context, a *host.Adapter, args []any) (any, error) {
			return nil, a.DropNode(args[0].(host.ID))
		},
	},
}

// Lookup returns the function with the given export name.
func Lookup(name string) (*Function, bool) {
	for i := range Functions {
		if Functions[i].Name == name {
			return &Functions[i], true
		}
	}
	return nil, false
}

// WIT renders the host ABI as a WIT interface. Fallible functions return
// result<T, error-code>; the core status is the error-code index plus one.
func WIT(pkg string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "package %s;\n\ninterface host {\n", pkg)
	b.WriteString("    record handle {\n        id: u64,\n        owned: bool,\n    }\n\n")
	b.WriteString("    enum error-code {\n")
	for s := StatusNotFound; s <= StatusBackendFailure; s++ {
		fmt.Fprintf(&b, "        %s,\n", s)
	}
	b.WriteString("    }\n")

	for _, fn := range Functions {
		b.WriteByte('\n')
		if fn.Doc != "" {
			fmt.Fprintf(&b, "    /// %s\n", fn.Doc)
		}
		params := make([]string, len(fn.Params))
		for i, p := range fn.Params {
			params[i] = p.Name + ": " + p.Type
		}
		ok := fn.Result
		if ok == "" {
			ok = "_"
		}
		fmt.Fprintf(&b, "    %s: func(%s) -> result<%s, error-code>;\n", fn.Name, strings.Join(params, ", "), ok)
	}
	b.WriteString("}\n")
	return b.String()
}

// checkNotOwnershipViolation panics on ownership violations so the guest
// call traps instead of receiving a status.
func checkNotOwnershipViolation(fn string, err error) {
	if errors.IsOwnershipViolation(err) {
		panic(errors.New(errors.PhaseBoundary, errors.KindOwnershipViolation).
			Detail("%s", fn).
			Cause(err).
			Build())
	}
}
