package module

// Catalog exposes module retrieval for HTTP handlers.
type Catalog interface {
	List() []Module
	FindByID(id string) (Module, bool)
}

// StaticCatalog implements Catalog with an in-memory slice; the curriculum is
// fixed per deployment.
type StaticCatalog struct {
	items []Module
}

// NewStaticCatalog returns a StaticCatalog preloaded with the supplied modules.
func NewStaticCatalog(items []Module) *StaticCatalog {
	return &StaticCatalog{items: append([]Module(nil), items...)}
}

// List returns the catalog in its seeded order.
func (c *StaticCatalog) List() []Module {
	return append([]Module(nil), c.items...)
}

// FindByID looks up a module by identifier.
func (c *StaticCatalog) FindByID(id string) (Module, bool) {
	for _, item := range c.items {
		if item.ID == id {
			return item, true
		}
	}
	return Module{}, false
}
