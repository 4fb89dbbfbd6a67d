package host

import (
	"context"
	stderrors "errors"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nickjmiller/floneum/config"
	"github.com/nickjmiller/floneum/content"
	"github.com/nickjmiller/floneum/errors"
	"github.com/nickjmiller/floneum/model"
	"github.com/nickjmiller/floneum/resource"
	"github.com/nickjmiller/floneum/vectordb"
	"github.com/nickjmiller/floneum/vectordb/flat"
)

// gateBackend generates and embeds, optionally blocking until released.
type gateBackend struct {
	gate    chan struct{}
	entered chan struct{}
	fail    string
}

func (b *gateBackend) Name() string { return "gate" }

func (b *gateBackend) wait(ctx context.Context) error {
	if b.entered != nil {
		b.entered <- struct{}{}
	}
	if b.gate == nil {
		return nil
	}
	select {
	case <-b.gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *gateBackend) Generate(ctx context.Context, prompt string, maxTokens uint32, stopOn string) (string, error) {
	if err := b.wait(ctx); err != nil {
		return "", err
	}
	return "echo: " + prompt, nil
}

func (b *gateBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := b.wait(ctx); err != nil {
		return nil, err
	}
	if b.fail != "" && strings.Contains(text, b.fail) {
		return nil, stderrors.New("cannot embed " + text)
	}
	switch text {
	case "alpha":
		return []float32{1, 0, 0}, nil
	case "beta":
		return []float32{0, 1, 0}, nil
	case "gamma":
		return []float32{0.9, 0.1, 0}, nil
	}
	return []float32{0, 0, 1}, nil
}

func newTestAdapter(t *testing.T, backend *gateBackend) *Adapter {
	t.Helper()
	catalog := model.NewCatalog(map[string]model.Spec{
		"text":  {Provider: "gate", Type: model.TypeText},
		"embed": {Provider: "gate", Type: model.TypeEmbedding},
		"local": {Provider: "hash", Type: model.TypeEmbedding, Dimension: 32},
	})
	catalog.RegisterProvider("gate", func(model.Spec) (model.Backend, error) {
		return backend, nil
	})

	source := content.NewMapSource()
	source.Put(content.NewTextPage("mem://doc", "Doc", "first\n\nsecond"))

	a := New(func(o *Options) {
		o.Catalog = catalog
		o.Source = source
	})
	t.Cleanup(func() { a.Close() })
	return a
}

func TestAdapter_ClosestScenario(t *testing.T) {
	a := newTestAdapter(t, &gateBackend{})
	ctx := context.Background()

	db, err := a.CreateEmbeddingDb(ctx, nil, nil)
	if err != nil {
		t.Fatalf("CreateEmbeddingDb failed: %v", err)
	}
	if !db.Owned {
		t.Fatal("create must return an owned id")
	}

	for _, in := range []struct {
		vec []float32
		doc string
	}{
		{[]float32{1, 0, 0}, "alpha"},
		{[]float32{0, 1, 0}, "beta"},
		{[]float32{0.9, 0.1, 0}, "gamma"},
	} {
		if err := a.AddEmbedding(ctx, db, in.vec, in.doc); err != nil {
			t.Fatalf("AddEmbedding failed: %v", err)
		}
	}

	docs, err := a.FindClosestDocuments(ctx, db, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("FindClosestDocuments failed: %v", err)
	}
	if len(docs) != 2 || docs[0] != "alpha" || docs[1] != "gamma" {
		t.Fatalf("Expected [alpha gamma], got %v", docs)
	}

	// Borrowed ids can use but not release.
	borrowed := ID{ID: db.ID, Owned: false}
	if _, err := a.FindClosest(ctx, borrowed, []float32{0, 1, 0}, 1); err != nil {
		t.Fatalf("FindClosest with borrowed id failed: %v", err)
	}
	if err := a.DropEmbeddingDb(borrowed); !errors.IsOwnershipViolation(err) {
		t.Fatalf("Expected ownership_violation, got %v", err)
	}
	if _, err := a.FindClosest(ctx, db, []float32{0, 1, 0}, 1); err != nil {
		t.Fatalf("database must survive a rejected release: %v", err)
	}

	if err := a.DropEmbeddingDb(db); err != nil {
		t.Fatalf("DropEmbeddingDb failed: %v", err)
	}
	if _, err := a.FindClosestDocuments(ctx, db, []float32{1, 0, 0}, 1); !errors.IsNotFound(err) {
		t.Fatalf("Expected not_found after drop, got %v", err)
	}
	if err := a.DropEmbeddingDb(db); !errors.IsNotFound(err) {
		t.Fatalf("Expected not_found on double drop, got %v", err)
	}
}

func TestAdapter_CreateEmbeddingDbSeeded(t *testing.T) {
	a := newTestAdapter(t, &gateBackend{})
	ctx := context.Background()

	db, err := a.CreateEmbeddingDb(ctx,
		[][]float32{{0, 1}, {1, 0}},
		[]string{"up", "right"})
	if err != nil {
		t.Fatalf("CreateEmbeddingDb failed: %v", err)
	}
	docs, err := a.FindClosestDocuments(ctx, db, []float32{1, 0.1}, 5)
	if err != nil {
		t.Fatalf("FindClosestDocuments failed: %v", err)
	}
	if len(docs) != 2 || docs[0] != "right" || docs[1] != "up" {
		t.Fatalf("Expected [right up], got %v", docs)
	}

	empty, err := a.FindClosestDocuments(ctx, db, []float32{1, 0}, 0)
	if err != nil || len(empty) != 0 {
		t.Fatalf("Expected empty result for count 0, got %v, %v", empty, err)
	}

	if _, err := a.CreateEmbeddingDb(ctx, [][]float32{{1}}, nil); !errors.IsKind(err, errors.KindInvalidInput) {
		t.Fatalf("Expected invalid_input for mismatched seed, got %v", err)
	}
	_, err = a.CreateEmbeddingDb(ctx, [][]float32{{1, 0}, {1, 0, 0}}, []string{"a", "b"})
	if !errors.IsKind(err, errors.KindIndexFailure) {
		t.Fatalf("Expected index_failure for inconsistent seed, got %v", err)
	}
	if n := a.Stats()[resource.KindEmbeddingDb]; n != 1 {
		t.Fatalf("failed creates must not leave databases behind, have %d", n)
	}
}

func TestAdapter_FaultedStore(t *testing.T) {
	var builds atomic.Int32
	a := New(func(o *Options) {
		o.NewIndex = func() (vectordb.Index, error) {
			builds.Add(1)
			return nil, stderrors.New("disk full")
		}
	})
	defer a.Close()
	ctx := context.Background()

	db, err := a.CreateEmbeddingDb(ctx, nil, nil)
	if err != nil {
		t.Fatalf("lazy create must succeed: %v", err)
	}
	err1 := a.AddEmbedding(ctx, db, []float32{1}, "x")
	_, err2 := a.FindClosestDocuments(ctx, db, []float32{1}, 1)
	if !errors.IsKind(err1, errors.KindConstructionFailure) {
		t.Fatalf("Expected construction_failure, got %v", err1)
	}
	if err1 != err2 {
		t.Fatalf("Expected the same cached error, got %v and %v", err1, err2)
	}
	if builds.Load() != 1 {
		t.Fatalf("Expected one construction attempt, got %d", builds.Load())
	}

	_, err = a.CreateEmbeddingDb(ctx, [][]float32{{1}}, []string{"seed"})
	if !errors.IsKind(err, errors.KindConstructionFailure) {
		t.Fatalf("Expected construction_failure for seeded create, got %v", err)
	}
}

func TestAdapter_ModelLifecycle(t *testing.T) {
	a := newTestAdapter(t, &gateBackend{})
	ctx := context.Background()

	m, err := a.CreateModel(ctx, "text")
	if err != nil {
		t.Fatalf("CreateModel failed: %v", err)
	}
	loaded, err := a.ModelLoaded(ctx, m)
	if err != nil || loaded {
		t.Fatalf("Expected unloaded model, got %v, %v", loaded, err)
	}

	out, err := a.Infer(ctx, m, "hi", 10, "")
	if err != nil {
		t.Fatalf("Infer failed: %v", err)
	}
	if out != "echo: hi" {
		t.Fatalf("Infer = %q", out)
	}
	if loaded, _ := a.ModelLoaded(ctx, m); !loaded {
		t.Fatal("Expected model to be loaded after inference")
	}

	if _, err := a.Embed(ctx, m, "x"); !errors.IsKind(err, errors.KindUnsupported) {
		t.Fatalf("Expected unsupported embedding on text model, got %v", err)
	}

	if _, err := a.CreateModel(ctx, "nope"); !errors.IsKind(err, errors.KindInvalidInput) {
		t.Fatalf("Expected invalid_input for unknown model, got %v", err)
	}

	if err := a.DropModel(ID{ID: m.ID}); !errors.IsOwnershipViolation(err) {
		t.Fatalf("Expected ownership_violation, got %v", err)
	}
	if err := a.DropModel(m); err != nil {
		t.Fatalf("DropModel failed: %v", err)
	}
	if _, err := a.Infer(ctx, m, "hi", 0, ""); !errors.IsNotFound(err) {
		t.Fatalf("Expected not_found after drop, got %v", err)
	}
}

func TestAdapter_StaleIDAfterReuse(t *testing.T) {
	a := newTestAdapter(t, &gateBackend{})
	ctx := context.Background()

	first, _ := a.CreateModel(ctx, "text")
	if err := a.DropModel(first); err != nil {
		t.Fatalf("DropModel failed: %v", err)
	}
	second, err := a.CreateModel(ctx, "embed")
	if err != nil {
		t.Fatalf("CreateModel failed: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("a reused slot must not reissue the same id")
	}

	if _, err := a.ModelLoaded(ctx, first); !errors.IsNotFound(err) {
		t.Fatalf("Expected stale id to be not_found, got %v", err)
	}
	if err := a.DropModel(first); !errors.IsNotFound(err) {
		t.Fatalf("Expected stale release to be not_found, got %v", err)
	}
	if _, err := a.ModelLoaded(ctx, second); err != nil {
		t.Fatalf("new occupant must be unaffected: %v", err)
	}
	if _, err := a.ModelLoaded(ctx, ID{ID: 0, Owned: true}); !errors.IsNotFound(err) {
		t.Fatalf("id 0 must never be valid, got %v", err)
	}
}

func TestAdapter_KindsArePartitioned(t *testing.T) {
	a := newTestAdapter(t, &gateBackend{})
	ctx := context.Background()

	m, _ := a.CreateModel(ctx, "text")
	if err := a.DropEmbeddingDb(m); !errors.IsNotFound(err) {
		t.Fatalf("a model id must not resolve in the database table, got %v", err)
	}
	if _, err := a.PageTitle(ctx, m); !errors.IsNotFound(err) {
		t.Fatalf("a model id must not resolve in the page table, got %v", err)
	}
	if _, err := a.ModelLoaded(ctx, m); err != nil {
		t.Fatalf("model must be unaffected: %v", err)
	}
}

func TestAdapter_AddDocument(t *testing.T) {
	a := newTestAdapter(t, &gateBackend{})
	ctx := context.Background()

	emb, _ := a.CreateModel(ctx, "embed")
	db, _ := a.CreateEmbeddingDb(ctx, nil, nil)

	for _, doc := range []string{"alpha", "beta", "gamma"} {
		if err := a.AddDocument(ctx, db, emb, doc); err != nil {
			t.Fatalf("AddDocument(%s) failed: %v", doc, err)
		}
	}

	query, err := a.Embed(ctx, emb, "alpha")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	docs, _ := a.FindClosestDocuments(ctx, db, query, 2)
	if len(docs) != 2 || docs[0] != "alpha" || docs[1] != "gamma" {
		t.Fatalf("Expected [alpha gamma], got %v", docs)
	}

	if err := a.AddDocument(ctx, db, ID{ID: 999, Owned: true}, "x"); !errors.IsNotFound(err) {
		t.Fatalf("Expected not_found for missing model, got %v", err)
	}
}

func TestAdapter_AddDocuments(t *testing.T) {
	a := newTestAdapter(t, &gateBackend{fail: "poison"})
	ctx := context.Background()

	emb, _ := a.CreateModel(ctx, "embed")
	db, _ := a.CreateEmbeddingDb(ctx, nil, nil)

	if err := a.AddDocuments(ctx, db, emb, []string{"alpha", "beta", "gamma", "delta"}); err != nil {
		t.Fatalf("AddDocuments failed: %v", err)
	}
	results, err := a.FindClosest(ctx, db, []float32{0, 0, 1}, 10)
	if err != nil {
		t.Fatalf("FindClosest failed: %v", err)
	}
	if len(results) != 4 || results[0].Document.Body != "delta" {
		t.Fatalf("unexpected results %+v", results)
	}

	err = a.AddDocuments(ctx, db, emb, []string{"one", "poison", "two"})
	if !errors.IsKind(err, errors.KindBackendFailure) {
		t.Fatalf("Expected backend_failure, got %v", err)
	}
	results, _ = a.FindClosest(ctx, db, []float32{0, 0, 1}, 10)
	if len(results) != 4 {
		t.Fatalf("a failed batch must insert nothing, have %d documents", len(results))
	}
}

func TestAdapter_InferenceRunsOutsideLock(t *testing.T) {
	backend := &gateBackend{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	a := newTestAdapter(t, backend)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	m, _ := a.CreateModel(ctx, "text")
	db, _ := a.CreateEmbeddingDb(ctx, nil, nil)

	done := make(chan error, 1)
	go func() {
		_, err := a.Infer(ctx, m, "slow", 0, "")
		done <- err
	}()

	select {
	case <-backend.entered:
	case <-ctx.Done():
		t.Fatal("inference never started")
	}

	// Both need the broker lock while inference is still blocked.
	if err := a.AddEmbedding(ctx, db, []float32{1}, "during"); err != nil {
		t.Fatalf("AddEmbedding blocked or failed during inference: %v", err)
	}
	other, err := a.CreateModel(ctx, "text")
	if err != nil {
		t.Fatalf("CreateModel failed during inference: %v", err)
	}
	if err := a.DropModel(other); err != nil {
		t.Fatalf("DropModel failed during inference: %v", err)
	}

	close(backend.gate)
	if err := <-done; err != nil {
		t.Fatalf("Infer failed: %v", err)
	}
}

func TestAdapter_ModelReleasedDuringInference(t *testing.T) {
	backend := &gateBackend{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	a := newTestAdapter(t, backend)
	ctx := context.Background()

	m, _ := a.CreateModel(ctx, "text")
	done := make(chan error, 1)
	go func() {
		_, err := a.Infer(ctx, m, "x", 0, "")
		done <- err
	}()
	<-backend.entered

	if err := a.DropModel(m); err != nil {
		t.Fatalf("DropModel failed: %v", err)
	}
	close(backend.gate)
	if err := <-done; err != nil {
		t.Fatalf("in-flight inference must complete: %v", err)
	}
	if _, err := a.Infer(ctx, m, "x", 0, ""); !errors.IsNotFound(err) {
		t.Fatalf("Expected not_found after drop, got %v", err)
	}
}

func TestAdapter_IndexBuiltOutsideLock(t *testing.T) {
	entered := make(chan struct{}, 1)
	gate := make(chan struct{})
	source := content.NewMapSource()
	source.Put(content.NewTextPage("mem://doc", "Doc", "body"))
	a := New(func(o *Options) {
		o.Source = source
		o.NewIndex = func() (vectordb.Index, error) {
			entered <- struct{}{}
			<-gate
			return flat.New(), nil
		}
	})
	t.Cleanup(func() { a.Close() })
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	page, err := a.CreatePage(ctx, "mem://doc")
	if err != nil {
		t.Fatalf("CreatePage failed: %v", err)
	}
	db, err := a.CreateEmbeddingDb(ctx, nil, nil)
	if err != nil {
		t.Fatalf("CreateEmbeddingDb failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- a.AddEmbedding(ctx, db, []float32{1, 0}, "first")
	}()
	select {
	case <-entered:
	case <-ctx.Done():
		t.Fatal("index construction never started")
	}

	// Shared and exclusive sections while the index is still being built.
	others := make(chan error, 1)
	go func() {
		if _, err := a.PageTitle(ctx, page); err != nil {
			others <- err
			return
		}
		other, err := a.CreateEmbeddingDb(ctx, nil, nil)
		if err != nil {
			others <- err
			return
		}
		others <- a.DropEmbeddingDb(other)
	}()
	select {
	case err := <-others:
		if err != nil {
			t.Fatalf("broker call failed during index construction: %v", err)
		}
	case <-time.After(2 * time.Second):
		close(gate)
		t.Fatal("broker calls blocked while an index was being built")
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("AddEmbedding failed: %v", err)
	}
	docs, err := a.FindClosestDocuments(ctx, db, []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("FindClosestDocuments failed: %v", err)
	}
	if len(docs) != 1 || docs[0] != "first" {
		t.Fatalf("Expected [first], got %v", docs)
	}
}

// flakyIndex fails the add numbered failAt and accepts every other one.
type flakyIndex struct {
	*flat.Index
	adds   int
	failAt int
}

func (x *flakyIndex) Add(v []float32) (uint32, error) {
	x.adds++
	if x.adds == x.failAt {
		return 0, stderrors.New("boom")
	}
	return x.Index.Add(v)
}

func TestAdapter_AddDocumentsIndexFailureInsertsNothing(t *testing.T) {
	backend := &gateBackend{}
	catalog := model.NewCatalog(map[string]model.Spec{
		"embed": {Provider: "gate", Type: model.TypeEmbedding},
	})
	catalog.RegisterProvider("gate", func(model.Spec) (model.Backend, error) {
		return backend, nil
	})
	a := New(func(o *Options) {
		o.Catalog = catalog
		o.NewIndex = func() (vectordb.Index, error) {
			return &flakyIndex{Index: flat.New(), failAt: 2}, nil
		}
	})
	t.Cleanup(func() { a.Close() })
	ctx := context.Background()

	emb, _ := a.CreateModel(ctx, "embed")
	db, _ := a.CreateEmbeddingDb(ctx, nil, nil)

	err := a.AddDocuments(ctx, db, emb, []string{"alpha", "beta", "gamma"})
	if !errors.IsKind(err, errors.KindIndexFailure) {
		t.Fatalf("Expected index_failure, got %v", err)
	}
	docs, err := a.FindClosestDocuments(ctx, db, []float32{1, 0, 0}, 10)
	if err != nil {
		t.Fatalf("FindClosestDocuments failed: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("Expected no documents after a failed batch, got %v", docs)
	}

	if err := a.AddDocuments(ctx, db, emb, []string{"alpha", "beta", "gamma"}); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	docs, err = a.FindClosestDocuments(ctx, db, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("FindClosestDocuments failed: %v", err)
	}
	if len(docs) != 2 || docs[0] != "alpha" || docs[1] != "gamma" {
		t.Fatalf("Expected [alpha gamma], got %v", docs)
	}
}

func TestAdapter_CanceledContext(t *testing.T) {
	a := newTestAdapter(t, &gateBackend{})
	ctx := context.Background()

	m, _ := a.CreateModel(ctx, "text")
	page, err := a.CreatePage(ctx, "mem://doc")
	if err != nil {
		t.Fatalf("CreatePage failed: %v", err)
	}
	node, err := a.PageRoot(ctx, page)
	if err != nil {
		t.Fatalf("PageRoot failed: %v", err)
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()

	tests := []struct {
		name string
		call func() error
	}{
		{"ModelLoaded", func() error { _, err := a.ModelLoaded(canceled, m); return err }},
		{"PageTitle", func() error { _, err := a.PageTitle(canceled, page); return err }},
		{"PageText", func() error { _, err := a.PageText(canceled, page); return err }},
		{"PageRoot", func() error { _, err := a.PageRoot(canceled, page); return err }},
		{"NodeTag", func() error { _, err := a.NodeTag(canceled, node); return err }},
		{"NodeText", func() error { _, err := a.NodeText(canceled, node); return err }},
		{"NodeChildren", func() error { _, err := a.NodeChildren(canceled, node); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !stderrors.Is(err, context.Canceled) {
				t.Fatalf("Expected context.Canceled, got %v", err)
			}
		})
	}

	if got := a.Stats()[resource.KindNode]; got != 1 {
		t.Fatalf("Expected only the root node to be live, got %d", got)
	}
}

func TestAdapter_PagesAndNodes(t *testing.T) {
	a := newTestAdapter(t, &gateBackend{})
	ctx := context.Background()

	page, err := a.CreatePage(ctx, "mem://doc")
	if err != nil {
		t.Fatalf("CreatePage failed: %v", err)
	}
	if title, _ := a.PageTitle(ctx, page); title != "Doc" {
		t.Fatalf("PageTitle = %q", title)
	}
	if text, _ := a.PageText(ctx, page); text != "first\n\nsecond" {
		t.Fatalf("PageText = %q", text)
	}

	root, err := a.PageRoot(ctx, page)
	if err != nil {
		t.Fatalf("PageRoot failed: %v", err)
	}
	if !root.Owned {
		t.Fatal("PageRoot must return an owned id")
	}
	if tag, _ := a.NodeTag(ctx, root); tag != "body" {
		t.Fatalf("NodeTag = %q", tag)
	}

	// Nodes outlive the page they came from.
	if err := a.DropPage(page); err != nil {
		t.Fatalf("DropPage failed: %v", err)
	}

	children, err := a.NodeChildren(ctx, root)
	if err != nil {
		t.Fatalf("NodeChildren failed: %v", err)
	}
	if len(children) != 3 {
		t.Fatalf("Expected 3 children, got %d", len(children))
	}
	var texts []string
	for _, c := range children {
		if !c.Owned {
			t.Fatal("children must be owned")
		}
		text, err := a.NodeText(ctx, c)
		if err != nil {
			t.Fatalf("NodeText failed: %v", err)
		}
		texts = append(texts, text)
	}
	if strings.Join(texts, "|") != "Doc|first|second" {
		t.Fatalf("unexpected child texts %v", texts)
	}
	if all, _ := a.NodeText(ctx, root); all != "Doc\nfirst\nsecond" {
		t.Fatalf("root NodeText = %q", all)
	}

	for _, c := range children {
		if err := a.DropNode(c); err != nil {
			t.Fatalf("DropNode failed: %v", err)
		}
	}
	if err := a.DropNode(ID{ID: root.ID}); !errors.IsOwnershipViolation(err) {
		t.Fatalf("Expected ownership_violation, got %v", err)
	}
	if err := a.DropNode(root); err != nil {
		t.Fatalf("DropNode failed: %v", err)
	}
	if _, err := a.NodeTag(ctx, root); !errors.IsNotFound(err) {
		t.Fatalf("Expected not_found, got %v", err)
	}

	if _, err := a.CreatePage(ctx, "mem://missing"); err == nil {
		t.Fatal("Expected error for unknown page")
	}
	if n := a.Stats()[resource.KindNode]; n != 0 {
		t.Fatalf("Expected no live nodes, got %d", n)
	}
}

func TestAdapter_ConcurrentCreates(t *testing.T) {
	a := newTestAdapter(t, &gateBackend{})
	ctx := context.Background()

	const n = 64
	ids := make([]ID, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := a.CreateEmbeddingDb(ctx, nil, nil)
			if err != nil {
				t.Errorf("CreateEmbeddingDb failed: %v", err)
				return
			}
			ids[i] = id
		}(i)
	}
	wg.Wait()

	seen := make(map[uint64]bool, n)
	for _, id := range ids {
		if seen[id.ID] {
			t.Fatalf("id %d issued twice", id.ID)
		}
		seen[id.ID] = true
	}
}

func TestAdapter_Close(t *testing.T) {
	a := New()
	ctx := context.Background()
	db, _ := a.CreateEmbeddingDb(ctx, nil, nil)

	if err := a.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := a.FindClosest(ctx, db, []float32{1}, 1); !errors.IsNotFound(err) {
		t.Fatalf("Expected not_found after close, got %v", err)
	}
	if _, err := a.CreateEmbeddingDb(ctx, nil, nil); !errors.IsKind(err, errors.KindClosed) {
		t.Fatalf("Expected closed, got %v", err)
	}
}

func TestNewIndexFactory(t *testing.T) {
	flatFactory, err := NewIndexFactory(config.StoreConfig{Index: "flat", Metric: "cosine"})
	if err != nil {
		t.Fatalf("flat factory failed: %v", err)
	}
	if idx, err := flatFactory(); err != nil || idx == nil {
		t.Fatalf("flat index = %v, %v", idx, err)
	}

	dir := filepath.Join(t.TempDir(), "stores")
	boltFactory, err := NewIndexFactory(config.StoreConfig{Index: "bolt", DataDir: dir})
	if err != nil {
		t.Fatalf("bolt factory failed: %v", err)
	}
	a := New(func(o *Options) { o.NewIndex = boltFactory })
	defer a.Close()

	db, err := a.CreateEmbeddingDb(context.Background(), [][]float32{{1, 0}}, []string{"persisted"})
	if err != nil {
		t.Fatalf("CreateEmbeddingDb failed: %v", err)
	}
	docs, err := a.FindClosestDocuments(context.Background(), db, []float32{1, 0}, 1)
	if err != nil || len(docs) != 1 || docs[0] != "persisted" {
		t.Fatalf("FindClosestDocuments = %v, %v", docs, err)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "*.db"))
	if len(matches) != 1 {
		t.Fatalf("Expected one database file, got %v", matches)
	}
	if err := a.DropEmbeddingDb(db); err != nil {
		t.Fatalf("DropEmbeddingDb failed: %v", err)
	}
	matches, _ = filepath.Glob(filepath.Join(dir, "*.db"))
	if len(matches) != 0 {
		t.Fatalf("Expected database file removed on drop, got %v", matches)
	}

	if _, err := NewIndexFactory(config.StoreConfig{Index: "bolt"}); err == nil {
		t.Fatal("Expected error for bolt without data dir")
	}
	if _, err := NewIndexFactory(config.StoreConfig{Index: "hnsw"}); !errors.IsKind(err, errors.KindUnsupported) {
		t.Fatalf("Expected unsupported index, got %v", err)
	}
	if _, err := NewIndexFactory(config.StoreConfig{Metric: "manhattan"}); err == nil {
		t.Fatal("Expected error for unknown metric")
	}
}

func TestFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Content.Dir = t.TempDir()
	opt, err := FromConfig(cfg)
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}
	a := New(opt)
	defer a.Close()

	m, err := a.CreateModel(context.Background(), "local-embedding")
	if err != nil {
		t.Fatalf("CreateModel failed: %v", err)
	}
	vec, err := a.Embed(context.Background(), m, "hello world")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != 256 {
		t.Fatalf("Expected 256 dimensions, got %d", len(vec))
	}
}
