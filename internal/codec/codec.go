// Package codec implements a binary, self-describing, handle-preserving
// DAG serialization format. Go functions are not data, so a
// PreparedTransformer's ApplyFunc or a Generator's generator function
// cannot be marshaled directly; instead each node snapshot carries its
// producer kind and name, and decoding looks the named transform back up
// in a caller-supplied Registry (a "construct by declared kind + name"
// idiom, the same shape as turning a stored NodeConfig back into a live
// NodeExecutor). Handles themselves round-trip exactly: a decoded producer keeps the same
// 128-bit identity it was encoded with, and the decoder interns producers
// by handle so two snapshot entries referencing the same parent handle
// decode to one shared instance.
package codec

import (
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/smilemakc/dagml/internal/core"
	"github.com/smilemakc/dagml/internal/engerr"
)

// NodeSnapshot is one producer's serialized form.
type NodeSnapshot struct {
	ID      uuid.UUID   `msgpack:"id"`
	Kind    string      `msgpack:"kind"`
	Class   string      `msgpack:"class"` // concrete Go type tag: "placeholder","generator","constant","prepared","preparable","view","conditional"
	Parents []uuid.UUID `msgpack:"parents"`
	Data    []byte      `msgpack:"data"` // class-specific msgpack payload, see encodeData
}

// DAGSnapshot is a whole DAG's serialized form: every node reachable from
// Outputs, plus which of them are Placeholders.
type DAGSnapshot struct {
	Nodes        []NodeSnapshot `msgpack:"nodes"`
	Outputs      []uuid.UUID    `msgpack:"outputs"`
	Placeholders []uuid.UUID    `msgpack:"placeholders"`
}

// Registry supplies the constructors Decode needs to rebuild function-
// bearing producer kinds (PreparedTransformer, Generator) from their
// declared name. Callers register every named transform/generator their
// DAGs use before decoding; this mirrors a config parser mapping a
// stored node "type" string back to a concrete executor.
type Registry struct {
	transformers map[string]transformerEntry
	generators   map[string]func(exampleIndex int) any
}

type transformerEntry struct {
	fn     core.ApplyFunc
	always bool
}

// NewRegistry returns an empty decode registry.
func NewRegistry() *Registry {
	return &Registry{
		transformers: make(map[string]transformerEntry),
		generators:   make(map[string]func(exampleIndex int) any),
	}
}

// RegisterTransformer makes name resolvable by Decode for a
// PreparedTransformer node.
func (r *Registry) RegisterTransformer(name string, alwaysConstant bool, fn core.ApplyFunc) {
	r.transformers[name] = transformerEntry{fn: fn, always: alwaysConstant}
}

// RegisterGenerator makes name resolvable by Decode for a Generator node.
func (r *Registry) RegisterGenerator(name string, fn func(exampleIndex int) any) {
	r.generators[name] = fn
}

type constantPayload struct {
	Value any `msgpack:"value"`
}

type namedPayload struct {
	Name string `msgpack:"name"`
}

type viewPayload struct {
	Tag int `msgpack:"tag"`
}

type conditionalPayload struct {
	Expression string   `msgpack:"expression"`
	VarNames   []string `msgpack:"var_names"`
}

// Encode walks every node reachable from outputs (via the already-built
// graph order) and produces a DAGSnapshot.
func Encode(order []core.Handle, nodes map[core.Handle]core.Producer, outputs []core.Producer, placeholders []*core.Placeholder) (*DAGSnapshot, error) {
	snap := &DAGSnapshot{}
	for _, h := range order {
		p := nodes[h]
		ns, err := encodeNode(p)
		if err != nil {
			return nil, err
		}
		snap.Nodes = append(snap.Nodes, ns)
	}
	for _, out := range outputs {
		snap.Outputs = append(snap.Outputs, out.Handle().ID())
	}
	for _, ph := range placeholders {
		snap.Placeholders = append(snap.Placeholders, ph.Handle().ID())
	}
	return snap, nil
}

func encodeNode(p core.Producer) (NodeSnapshot, error) {
	h := p.Handle()
	ns := NodeSnapshot{ID: h.ID(), Kind: h.Kind()}
	for _, parent := range p.Parents() {
		ns.Parents = append(ns.Parents, parent.Handle().ID())
	}

	var payload any
	switch v := p.(type) {
	case *core.Placeholder:
		ns.Class = "placeholder"
		payload = namedPayload{Name: v.Name()}
	case *core.Generator:
		ns.Class = "generator"
		payload = namedPayload{Name: v.Name()}
	case *core.Constant:
		ns.Class = "constant"
		val, _ := v.ConstantValue()
		payload = constantPayload{Value: val}
	case *core.PreparedTransformer:
		ns.Class = "prepared"
		payload = namedPayload{Name: v.Name()}
	case *core.PreparableTransformer:
		ns.Class = "preparable"
		payload = namedPayload{Name: v.Name()}
	case *core.View:
		ns.Class = "view"
		payload = viewPayload{Tag: int(v.Tag())}
	case *core.ConditionalProducer:
		ns.Class = "conditional"
		payload = conditionalPayload{} // expression/varNames are unexported and not encoded; Decode rejects this class
	default:
		return NodeSnapshot{}, engerr.Serialization(nil, "no codec support for producer class %T (handle %s)", p, h)
	}

	data, err := msgpack.Marshal(payload)
	if err != nil {
		return NodeSnapshot{}, engerr.Serialization(err, "encoding payload for %s", h)
	}
	ns.Data = data
	return ns, nil
}

// Marshal serializes snap to msgpack bytes.
func Marshal(snap *DAGSnapshot) ([]byte, error) {
	b, err := msgpack.Marshal(snap)
	if err != nil {
		return nil, engerr.Serialization(err, "marshaling DAG snapshot")
	}
	return b, nil
}

// Unmarshal deserializes msgpack bytes into a DAGSnapshot.
func Unmarshal(b []byte) (*DAGSnapshot, error) {
	var snap DAGSnapshot
	if err := msgpack.Unmarshal(b, &snap); err != nil {
		return nil, engerr.Serialization(err, "unmarshaling DAG snapshot")
	}
	return &snap, nil
}

// Decode rebuilds live producers from snap, resolving named
// transformers/generators against reg, and returns the decoded outputs and
// placeholders in the same order as snap.Outputs/snap.Placeholders. Decoded
// producers are interned by handle: two snapshot entries naming the same
// parent ID always resolve to the same *core.Placeholder/etc. instance.
func Decode(snap *DAGSnapshot, reg *Registry) (outputs []core.Producer, placeholders []*core.Placeholder, err error) {
	byID := make(map[uuid.UUID]core.Producer, len(snap.Nodes))

	for _, ns := range snap.Nodes {
		parents := make([]core.Producer, len(ns.Parents))
		for i, pid := range ns.Parents {
			parent, ok := byID[pid]
			if !ok {
				return nil, nil, engerr.Serialization(nil, "node %s references parent %s before it was decoded", ns.ID, pid)
			}
			parents[i] = parent
		}

		p, decodeErr := decodeNode(ns, parents, reg)
		if decodeErr != nil {
			return nil, nil, decodeErr
		}
		byID[ns.ID] = p
	}

	for _, id := range snap.Outputs {
		p, ok := byID[id]
		if !ok {
			return nil, nil, engerr.Serialization(nil, "output %s not found among decoded nodes", id)
		}
		outputs = append(outputs, p)
	}
	for _, id := range snap.Placeholders {
		p, ok := byID[id]
		if !ok {
			return nil, nil, engerr.Serialization(nil, "placeholder %s not found among decoded nodes", id)
		}
		ph, ok := p.(*core.Placeholder)
		if !ok {
			return nil, nil, engerr.Serialization(nil, "node %s listed as a placeholder is not one", id)
		}
		placeholders = append(placeholders, ph)
	}
	return outputs, placeholders, nil
}

func decodeNode(ns NodeSnapshot, parents []core.Producer, reg *Registry) (core.Producer, error) {
	switch ns.Class {
	case "placeholder":
		var payload namedPayload
		if err := msgpack.Unmarshal(ns.Data, &payload); err != nil {
			return nil, engerr.Serialization(err, "decoding placeholder %s", ns.ID)
		}
		return core.RestorePlaceholder(ns.ID, payload.Name), nil

	case "generator":
		var payload namedPayload
		if err := msgpack.Unmarshal(ns.Data, &payload); err != nil {
			return nil, engerr.Serialization(err, "decoding generator %s", ns.ID)
		}
		fn, ok := reg.generators[payload.Name]
		if !ok {
			return nil, engerr.Serialization(nil, "no generator named %q registered to decode node %s", payload.Name, ns.ID)
		}
		return core.RestoreGenerator(ns.ID, payload.Name, fn), nil

	case "constant":
		var payload constantPayload
		if err := msgpack.Unmarshal(ns.Data, &payload); err != nil {
			return nil, engerr.Serialization(err, "decoding constant %s", ns.ID)
		}
		return core.RestoreConstant(ns.ID, payload.Value), nil

	case "prepared":
		var payload namedPayload
		if err := msgpack.Unmarshal(ns.Data, &payload); err != nil {
			return nil, engerr.Serialization(err, "decoding transformer %s", ns.ID)
		}
		entry, ok := reg.transformers[payload.Name]
		if !ok {
			return nil, engerr.Serialization(nil, "no transformer named %q registered to decode node %s", payload.Name, ns.ID)
		}
		return core.RestorePreparedTransformer(ns.ID, payload.Name, entry.always, entry.fn, parents...), nil

	case "preparable":
		return nil, engerr.Serialization(nil, "node %s is an unprepared PreparableTransformer; only prepared DAGs (post-reduction, post-prepare) can be serialized", ns.ID)

	case "view":
		return nil, engerr.Serialization(nil, "node %s is a View; views must be resolved before serialization", ns.ID)

	case "conditional":
		return nil, engerr.Serialization(nil, "node %s is a ConditionalProducer; its expression is not encoded, so it cannot be decoded", ns.ID)

	default:
		return nil, engerr.Serialization(nil, "unknown producer class %q for node %s", ns.Class, ns.ID)
	}
}
