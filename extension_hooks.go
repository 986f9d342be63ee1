package warranty

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-warranty/core"
	"github.com/goliatone/go-warranty/intake"
	"github.com/goliatone/go-warranty/transport"
)

type IntakeHandlerPack struct {
	Name     string
	Handlers []core.IntakeHandler
}

type TransportAdapterPack struct {
	Name     string
	Adapters []core.TransportAdapter
}

type CommandQueryBundleFactory func(service CommandQueryService) (any, error)

// ExtensionHooks lets embedding applications contribute intake
// surfaces, transport adapters, and command/query bundles without
// patching the wiring code.
type ExtensionHooks struct {
	mu sync.RWMutex

	intakePacks    map[string]IntakeHandlerPack
	transportPacks map[string]TransportAdapterPack
	bundles        map[string]CommandQueryBundleFactory
}

func NewExtensionHooks() *ExtensionHooks {
	return &ExtensionHooks{
		intakePacks:    map[string]IntakeHandlerPack{},
		transportPacks: map[string]TransportAdapterPack{},
		bundles:        map[string]CommandQueryBundleFactory{},
	}
}

func (h *ExtensionHooks) RegisterIntakePack(pack IntakeHandlerPack) error {
	if h == nil {
		return fmt.Errorf("warranty: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("warranty: intake pack name is required")
	}
	if len(pack.Handlers) == 0 {
		return fmt.Errorf("warranty: intake pack %q has no handlers", name)
	}

	normalized := IntakeHandlerPack{
		Name:     name,
		Handlers: append([]core.IntakeHandler(nil), pack.Handlers...),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.intakePacks[name]; exists {
		return fmt.Errorf("warranty: intake pack %q already registered", name)
	}
	h.intakePacks[name] = normalized
	return nil
}

func (h *ExtensionHooks) RegisterTransportPack(pack TransportAdapterPack) error {
	if h == nil {
		return fmt.Errorf("warranty: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("warranty: transport pack name is required")
	}
	if len(pack.Adapters) == 0 {
		return fmt.Errorf("warranty: transport pack %q has no adapters", name)
	}

	normalized := TransportAdapterPack{
		Name:     name,
		Adapters: append([]core.TransportAdapter(nil), pack.Adapters...),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.transportPacks[name]; exists {
		return fmt.Errorf("warranty: transport pack %q already registered", name)
	}
	h.transportPacks[name] = normalized
	return nil
}

func (h *ExtensionHooks) RegisterCommandQueryBundle(
	name string,
	factory CommandQueryBundleFactory,
) error {
	if h == nil {
		return fmt.Errorf("warranty: extension hooks are nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("warranty: command/query bundle name is required")
	}
	if factory == nil {
		return fmt.Errorf("warranty: command/query bundle %q factory is required", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.bundles[name]; exists {
		return fmt.Errorf("warranty: command/query bundle %q already registered", name)
	}
	h.bundles[name] = factory
	return nil
}

func (h *ExtensionHooks) ApplyIntakePacks(dispatcher *intake.Dispatcher) error {
	if h == nil {
		return nil
	}
	if dispatcher == nil {
		return fmt.Errorf("warranty: intake dispatcher is required")
	}

	for _, pack := range h.IntakePacks() {
		for _, handler := range pack.Handlers {
			if handler == nil {
				return fmt.Errorf("warranty: intake pack %q contains nil handler", pack.Name)
			}
			if err := dispatcher.Register(handler); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *ExtensionHooks) ApplyTransportPacks(registry *transport.Registry) error {
	if h == nil {
		return nil
	}
	if registry == nil {
		return fmt.Errorf("warranty: transport registry is required")
	}

	for _, pack := range h.TransportPacks() {
		for _, adapter := range pack.Adapters {
			if adapter == nil {
				return fmt.Errorf("warranty: transport pack %q contains nil adapter", pack.Name)
			}
			if err := registry.Register(adapter); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *ExtensionHooks) BuildCommandQueryBundles(
	service CommandQueryService,
) (map[string]any, error) {
	if h == nil {
		return map[string]any{}, nil
	}
	if service == nil {
		return nil, fmt.Errorf("warranty: command/query service is required")
	}

	h.mu.RLock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	factories := make(map[string]CommandQueryBundleFactory, len(h.bundles))
	for name, factory := range h.bundles {
		factories[name] = factory
	}
	h.mu.RUnlock()

	result := make(map[string]any, len(names))
	for _, name := range names {
		bundle, err := factories[name](service)
		if err != nil {
			return nil, err
		}
		result[name] = bundle
	}
	return result, nil
}

func (h *ExtensionHooks) IntakePacks() []IntakeHandlerPack {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.intakePacks))
	for name := range h.intakePacks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]IntakeHandlerPack, 0, len(names))
	for _, name := range names {
		pack := h.intakePacks[name]
		out = append(out, IntakeHandlerPack{
			Name:     pack.Name,
			Handlers: append([]core.IntakeHandler(nil), pack.Handlers...),
		})
	}
	return out
}

func (h *ExtensionHooks) TransportPacks() []TransportAdapterPack {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.transportPacks))
	for name := range h.transportPacks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]TransportAdapterPack, 0, len(names))
	for _, name := range names {
		pack := h.transportPacks[name]
		out = append(out, TransportAdapterPack{
			Name:     pack.Name,
			Adapters: append([]core.TransportAdapter(nil), pack.Adapters...),
		})
	}
	return out
}

func (h *ExtensionHooks) BundleNames() []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
