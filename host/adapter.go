package host

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nickjmiller/floneum/content"
	"github.com/nickjmiller/floneum/errors"
	"github.com/nickjmiller/floneum/model"
	"github.com/nickjmiller/floneum/resource"
	"github.com/nickjmiller/floneum/vectordb"
	"github.com/nickjmiller/floneum/vectordb/flat"
)

// ID is the form in which a resource crosses the plugin boundary: the packed
// slot id and whether the holder may release it.
type ID struct {
	ID    uint64
	Owned bool
}

func (id ID) String() string {
	if id.Owned {
		return fmt.Sprintf("%d(owned)", id.ID)
	}
	return fmt.Sprintf("%d(borrowed)", id.ID)
}

// Options configure an Adapter.
type Options struct {
	// Catalog resolves model names. Defaults to an empty catalog.
	Catalog *model.Catalog

	// Source fetches pages. Defaults to an empty in-memory source.
	Source content.Source

	// NewIndex builds the similarity index of each new embedding database.
	// Defaults to a flat L2 index.
	NewIndex vectordb.IndexFactory

	// EmbedConcurrency bounds parallel embedding in AddDocuments.
	EmbedConcurrency int

	Logger *zap.Logger
}

// Adapter translates plugin calls on numeric ids into typed broker
// operations.
//
// Every slow step (model inference, page fetching, index construction) runs
// outside the broker lock; only the short table sections run inside it.
type Adapter struct {
	broker *resource.Broker
	models *resource.Table[*model.Model]
	dbs    *resource.Table[*vectordb.Store]
	pages  *resource.Table[*content.Page]
	nodes  *resource.Table[*content.Node]

	catalog     *model.Catalog
	source      content.Source
	newIndex    vectordb.IndexFactory
	concurrency int
	logger      *zap.Logger
	observer    *logObserver
}

// New creates an adapter with its own broker.
func New(optFns ...func(o *Options)) *Adapter {
	opts := Options{EmbedConcurrency: 4}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Catalog == nil {
		opts.Catalog = model.NewCatalog(nil)
	}
	if opts.Source == nil {
		opts.Source = content.NewMapSource()
	}
	if opts.NewIndex == nil {
		opts.NewIndex = func() (vectordb.Index, error) { return flat.New(), nil }
	}
	if opts.EmbedConcurrency <= 0 {
		opts.EmbedConcurrency = 1
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	b := resource.NewBroker()
	a := &Adapter{
		broker:      b,
		models:      resource.NewTable[*model.Model](b, resource.KindModel),
		dbs:         resource.NewTable[*vectordb.Store](b, resource.KindEmbeddingDb),
		pages:       resource.NewTable[*content.Page](b, resource.KindPage),
		nodes:       resource.NewTable[*content.Node](b, resource.KindNode),
		catalog:     opts.Catalog,
		source:      opts.Source,
		newIndex:    opts.NewIndex,
		concurrency: opts.EmbedConcurrency,
		logger:      opts.Logger,
		observer:    &logObserver{logger: opts.Logger},
	}
	b.Subscribe(a.observer)
	return a
}

// Broker returns the underlying resource broker.
func (a *Adapter) Broker() *resource.Broker { return a.broker }

// Catalog returns the model catalog.
func (a *Adapter) Catalog() *model.Catalog { return a.catalog }

// Close releases every live resource. Later creates fail.
func (a *Adapter) Close() error {
	return a.broker.Close()
}

func toID(h resource.Handle) ID {
	return ID{ID: h.ID(), Owned: h.Owned}
}

// release frees h for a drop call. An ownership violation is logged at error
// level because it marks a defective plugin, not a runtime condition.
func release[T resource.Resource](a *Adapter, t *resource.Table[T], id ID) error {
	_, err := t.Release(t.Handle(id.ID, id.Owned))
	if errors.IsOwnershipViolation(err) {
		a.logger.Error("release through borrowed handle",
			zap.Stringer("kind", t.Kind()),
			zap.Uint64("id", id.ID))
	}
	return err
}

// discard frees a handle created on an error path.
func discard[T resource.Resource](a *Adapter, t *resource.Table[T], h resource.Handle) {
	if _, err := t.Release(h); err != nil {
		a.logger.Warn("release on error path", zap.Stringer("handle", h), zap.Error(err))
	}
}

// --- Model ---

// CreateModel returns an owned id for an unloaded instance of the named model.
func (a *Adapter) CreateModel(ctx context.Context, name string) (ID, error) {
	if err := ctx.Err(); err != nil {
		return ID{}, err
	}
	m, err := a.catalog.New(name)
	if err != nil {
		return ID{}, err
	}
	h, err := a.models.Insert(m)
	if err != nil {
		return ID{}, err
	}
	return toID(h), nil
}

// ModelLoaded reports whether the model's backend has been constructed.
func (a *Adapter) ModelLoaded(ctx context.Context, id ID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var loaded bool
	err := a.models.View(a.models.Handle(id.ID, id.Owned), func(m *model.Model) error {
		loaded = m.Loaded()
		return nil
	})
	return loaded, err
}

// Infer generates text. The model is copied out of the broker and runs with
// no lock held.
func (a *Adapter) Infer(ctx context.Context, id ID, prompt string, maxTokens uint32, stopOn string) (string, error) {
	m, err := a.models.Get(a.models.Handle(id.ID, id.Owned))
	if err != nil {
		return "", err
	}
	return m.Generate(ctx, prompt, maxTokens, stopOn)
}

// Embed computes an embedding with no lock held.
func (a *Adapter) Embed(ctx context.Context, id ID, text string) ([]float32, error) {
	m, err := a.models.Get(a.models.Handle(id.ID, id.Owned))
	if err != nil {
		return nil, err
	}
	return m.Embed(ctx, text)
}

// DropModel releases a model. id must be owned.
func (a *Adapter) DropModel(id ID) error {
	return release(a, a.models, id)
}

// --- EmbeddingDb ---

// CreateEmbeddingDb creates a database seeded with pairs of embeddings and
// documents. The seed is inserted before the database becomes reachable, so
// index construction and seeding run outside the broker lock.
func (a *Adapter) CreateEmbeddingDb(ctx context.Context, embeddings [][]float32, documents []string) (ID, error) {
	if len(embeddings) != len(documents) {
		return ID{}, errors.InvalidInput(errors.PhaseStore,
			fmt.Sprintf("%d embeddings but %d documents", len(embeddings), len(documents)))
	}

	store := vectordb.New(a.newIndex)
	for i := range embeddings {
		if err := ctx.Err(); err != nil {
			store.Drop()
			return ID{}, err
		}
		if err := store.AddEmbedding(embeddings[i], vectordb.Document{Body: documents[i]}); err != nil {
			store.Drop()
			return ID{}, err
		}
	}

	h, err := a.dbs.Insert(store)
	if err != nil {
		store.Drop()
		return ID{}, err
	}
	return toID(h), nil
}

// initStore builds the database's index, if still unbuilt, with no lock held.
func (a *Adapter) initStore(db ID) error {
	s, err := a.dbs.Get(a.dbs.Handle(db.ID, db.Owned))
	if err != nil {
		return err
	}
	return s.Init()
}

// AddEmbedding inserts one embedding and its document.
func (a *Adapter) AddEmbedding(ctx context.Context, db ID, embedding []float32, document string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := a.initStore(db); err != nil {
		return err
	}
	return a.dbs.Update(a.dbs.Handle(db.ID, db.Owned), func(s *vectordb.Store) error {
		return s.AddEmbedding(embedding, vectordb.Document{Body: document})
	})
}

// AddDocument embeds document with the given model outside the lock, then
// inserts it in a separate exclusive section.
func (a *Adapter) AddDocument(ctx context.Context, db, modelID ID, document string) error {
	vec, err := a.Embed(ctx, modelID, document)
	if err != nil {
		return err
	}
	return a.AddEmbedding(ctx, db, vec, document)
}

// AddDocuments embeds documents concurrently and inserts them in order in one
// exclusive section. Either every document becomes searchable or none does.
func (a *Adapter) AddDocuments(ctx context.Context, db, modelID ID, documents []string) error {
	m, err := a.models.Get(a.models.Handle(modelID.ID, modelID.Owned))
	if err != nil {
		return err
	}

	vectors := make([][]float32, len(documents))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, doc := range documents {
		g.Go(func() error {
			vec, err := m.Embed(gctx, doc)
			if err != nil {
				return err
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	docs := make([]vectordb.Document, len(documents))
	for i, body := range documents {
		docs[i] = vectordb.Document{Body: body}
	}
	if err := a.initStore(db); err != nil {
		return err
	}
	return a.dbs.Update(a.dbs.Handle(db.ID, db.Owned), func(s *vectordb.Store) error {
		return s.AddEmbeddings(vectors, docs)
	})
}

// FindClosest returns up to count documents nearest to search, with their
// distances.
func (a *Adapter) FindClosest(ctx context.Context, db ID, search []float32, count uint32) ([]vectordb.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := a.initStore(db); err != nil {
		return nil, err
	}
	var results []vectordb.Result
	err := a.dbs.View(a.dbs.Handle(db.ID, db.Owned), func(s *vectordb.Store) error {
		var err error
		results, err = s.GetClosest(search, int(count))
		return err
	})
	return results, err
}

// FindClosestDocuments returns the bodies of up to count documents nearest to
// search, closest first.
func (a *Adapter) FindClosestDocuments(ctx context.Context, db ID, search []float32, count uint32) ([]string, error) {
	results, err := a.FindClosest(ctx, db, search, count)
	if err != nil {
		return nil, err
	}
	docs := make([]string, len(results))
	for i, r := range results {
		docs[i] = r.Document.Body
	}
	return docs, nil
}

// DropEmbeddingDb releases a database. id must be owned.
func (a *Adapter) DropEmbeddingDb(id ID) error {
	return release(a, a.dbs, id)
}

// --- Page ---

// CreatePage fetches url from the configured source with no lock held.
func (a *Adapter) CreatePage(ctx context.Context, url string) (ID, error) {
	p, err := a.source.Fetch(ctx, url)
	if err != nil {
		return ID{}, err
	}
	h, err := a.pages.Insert(p)
	if err != nil {
		return ID{}, err
	}
	return toID(h), nil
}

// PageTitle returns the page title.
func (a *Adapter) PageTitle(ctx context.Context, id ID) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var title string
	err := a.pages.View(a.pages.Handle(id.ID, id.Owned), func(p *content.Page) error {
		title = p.Title
		return nil
	})
	return title, err
}

// PageText returns the page body.
func (a *Adapter) PageText(ctx context.Context, id ID) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var body string
	err := a.pages.View(a.pages.Handle(id.ID, id.Owned), func(p *content.Page) error {
		body = p.Body
		return nil
	})
	return body, err
}

// PageRoot returns an owned node id for the page's root node.
func (a *Adapter) PageRoot(ctx context.Context, id ID) (ID, error) {
	if err := ctx.Err(); err != nil {
		return ID{}, err
	}
	var root *content.Node
	err := a.pages.View(a.pages.Handle(id.ID, id.Owned), func(p *content.Page) error {
		root = p.Root
		return nil
	})
	if err != nil {
		return ID{}, err
	}
	if root == nil {
		return ID{}, errors.InvalidData(errors.PhaseContent, "page has no content tree")
	}
	h, err := a.nodes.Insert(root)
	if err != nil {
		return ID{}, err
	}
	return toID(h), nil
}

// DropPage releases a page. Node ids obtained from it stay valid.
func (a *Adapter) DropPage(id ID) error {
	return release(a, a.pages, id)
}

// --- Node ---

// NodeTag returns the node's tag name.
func (a *Adapter) NodeTag(ctx context.Context, id ID) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var tag string
	err := a.nodes.View(a.nodes.Handle(id.ID, id.Owned), func(n *content.Node) error {
		tag = n.Tag
		return nil
	})
	return tag, err
}

// NodeText returns the text content of the node and its descendants.
func (a *Adapter) NodeText(ctx context.Context, id ID) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var text string
	err := a.nodes.View(a.nodes.Handle(id.ID, id.Owned), func(n *content.Node) error {
		text = n.AllText()
		return nil
	})
	return text, err
}

// NodeChildren returns owned ids for each child. On failure every id created
// so far is released.
func (a *Adapter) NodeChildren(ctx context.Context, id ID) ([]ID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var children []*content.Node
	err := a.nodes.View(a.nodes.Handle(id.ID, id.Owned), func(n *content.Node) error {
		children = append(children, n.Children...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	handles := make([]resource.Handle, 0, len(children))
	for _, c := range children {
		h, err := a.nodes.Insert(c)
		if err != nil {
			for _, done := range handles {
				discard(a, a.nodes, done)
			}
			return nil, err
		}
		handles = append(handles, h)
	}

	ids := make([]ID, len(handles))
	for i, h := range handles {
		ids[i] = toID(h)
	}
	return ids, nil
}

// DropNode releases a node. id must be owned.
func (a *Adapter) DropNode(id ID) error {
	return release(a, a.nodes, id)
}

// Stats reports the number of live resources per kind.
func (a *Adapter) Stats() map[resource.Kind]int {
	out := make(map[resource.Kind]int, len(resource.Kinds))
	for _, k := range resource.Kinds {
		out[k] = a.broker.LenKind(k)
	}
	return out
}
