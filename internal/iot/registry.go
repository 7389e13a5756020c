// Package iot tracks the capabilities a device advertises at runtime.
//
// Devices send descriptor frames naming their capabilities (Speaker, Lamp,
// …) with typed properties and invokable methods. The registry stores the
// declared schema, type-checks every state update against it, and validates
// method invocations before they are turned into outbound command frames.
//
// The registry is mutated only by the session's inbound-frame reader, but
// tools read it from worker goroutines, so access is mutex-guarded.
package iot

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/voxhive/voxhive/internal/protocol"
	"github.com/voxhive/voxhive/pkg/types"
)

// Errors returned by Invoke.
var (
	ErrUnknownCapability = errors.New("iot: unknown capability")
	ErrUnknownMethod     = errors.New("iot: unknown method")
)

// property is one declared property with its current value.
type property struct {
	valueType types.ValueType
	value     any
}

// capability is one registered descriptor.
type capability struct {
	descriptor protocol.Descriptor
	properties map[string]*property
}

// Registry holds the device's declared capabilities for one session.
type Registry struct {
	mu   sync.RWMutex
	caps map[string]*capability
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{caps: make(map[string]*capability)}
}

// Register adds or replaces capabilities from device descriptors. Property
// values start at the declared type's zero value. Properties with an invalid
// declared type are dropped with a log entry.
func (r *Registry) Register(descriptors []protocol.Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range descriptors {
		if d.Name == "" {
			slog.Warn("iot: descriptor without a name, dropped")
			continue
		}
		c := &capability{
			descriptor: d,
			properties: make(map[string]*property, len(d.Properties)),
		}
		for name, def := range d.Properties {
			vt := types.ValueType(def.Type)
			if !vt.Valid() {
				slog.Warn("iot: property with invalid type, dropped",
					"capability", d.Name, "property", name, "type", def.Type)
				continue
			}
			c.properties[name] = &property{valueType: vt, value: vt.Zero()}
		}
		r.caps[d.Name] = c
		slog.Info("iot: capability registered",
			"capability", d.Name, "properties", len(c.properties), "methods", len(d.Methods))
	}
}

// UpdateStates applies property updates with type checking. A mismatched or
// unknown property is logged and dropped; other updates in the same frame
// still apply. Returns the number of applied updates.
func (r *Registry) UpdateStates(updates []protocol.StateUpdate) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	applied := 0
	for _, u := range updates {
		c, ok := r.caps[u.Name]
		if !ok {
			slog.Warn("iot: state update for unknown capability, dropped", "capability", u.Name)
			continue
		}
		for name, value := range u.State {
			prop, ok := c.properties[name]
			if !ok {
				slog.Warn("iot: state update for unknown property, dropped",
					"capability", u.Name, "property", name)
				continue
			}
			if !prop.valueType.Matches(value) {
				slog.Warn("iot: state update type mismatch, dropped",
					"capability", u.Name, "property", name,
					"declared", prop.valueType, "value", value)
				continue
			}
			prop.value = value
			applied++
		}
	}
	return applied
}

// Property returns the current value of a property.
func (r *Registry) Property(capName, propName string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.caps[capName]
	if !ok {
		return nil, false
	}
	prop, ok := c.properties[propName]
	if !ok {
		return nil, false
	}
	return prop.value, true
}

// HasMethod reports whether the named capability declares the method.
func (r *Registry) HasMethod(capName, method string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.caps[capName]
	if !ok {
		return false
	}
	_, ok = c.descriptor.Methods[method]
	return ok
}

// Invoke validates a method invocation against the declared schema and
// returns the command frame to send. The caller owns actually writing it.
func (r *Registry) Invoke(capName, method string, params map[string]any) (protocol.IoTCommand, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.caps[capName]
	if !ok {
		return protocol.IoTCommand{}, fmt.Errorf("%w: %q", ErrUnknownCapability, capName)
	}
	if _, ok := c.descriptor.Methods[method]; !ok {
		return protocol.IoTCommand{}, fmt.Errorf("%w: %s.%s", ErrUnknownMethod, capName, method)
	}
	return protocol.IoTCommand{Name: capName, Method: method, Parameters: params}, nil
}

// Names returns the registered capability names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.caps))
	for name := range r.caps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns a compact schema description of all registered
// capabilities, suitable for embedding in tool descriptions.
func (r *Registry) Describe() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.caps))
	for name := range r.caps {
		names = append(names, name)
	}
	sort.Strings(names)

	out := ""
	for _, name := range names {
		c := r.caps[name]
		out += name
		for method := range c.descriptor.Methods {
			out += " ." + method
		}
		out += "; "
	}
	return out
}
