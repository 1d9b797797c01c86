package agg

import "github.com/Henry2SS/granitetree/internal/column"

// Result materializes the aggregator's groups into one output block. final
// selects between the two result modes spec §4.2 describes: final=true
// finalizes each function's state with InsertResultInto (e.g. a running sum
// becomes a plain Int64 column); final=false instead emits one
// AggregateState column per function, referencing the aggregator's arena,
// for a downstream MergingAggregated stage to fold further (spec §9
// "Partial aggregation merge").
func (a *Aggregator) Result(final bool) *column.Block {
	out := column.NewBlock()

	keyOut := make([]column.Column, len(a.keyTypes))
	for i := range a.keyTypes {
		keyOut[i] = column.NewLike(a.keyProtos[i])
	}

	stateOut := make([]column.Column, len(a.funcs))
	for i, f := range a.funcs {
		if final {
			stateOut[i] = resultColumnFor(f)
		} else {
			stateOut[i] = column.NewAggregateState(f.Name(), a.arena)
		}
	}

	if a.method != nil {
		a.method.iterate(func(emitKey func(out []column.Column), state []byte) {
			emitKey(keyOut)
			emitGroup(a.funcs, a.layout, stateOut, state, final)
		})
	}
	if a.hasOverflow {
		for _, kc := range keyOut {
			kc.InsertDefault()
		}
		emitGroup(a.funcs, a.layout, stateOut, a.overflowState, final)
	}

	for i, name := range a.keyNames() {
		out.AddColumn(name, a.keyTypes[i], keyOut[i])
	}
	for i, f := range a.funcs {
		out.AddColumn(f.Name(), column.TypeInfo{Name: f.Name(), Kind: stateOut[i].Kind()}, stateOut[i])
	}
	return out
}

func (a *Aggregator) keyNames() []string {
	names := make([]string, len(a.keyTypes))
	for i, t := range a.keyTypes {
		names[i] = t.Name
	}
	return names
}

func emitGroup(funcs []Function, layout *StateLayout, stateOut []column.Column, state []byte, final bool) {
	for i, f := range funcs {
		field := state[layout.Offsets[i]:]
		if final {
			f.InsertResultInto(field, stateOut[i])
		} else {
			as := stateOut[i].(*column.AggregateState)
			as.Append(fieldPtr(field))
		}
	}
}

// resultColumnFor builds the (empty) output column a final-mode aggregate
// function writes its result into. Every Function shipped in this package
// produces Int64, so this stays a simple switch rather than a registry;
// functions that return a different type supply their own output kind by
// widening this switch when added.
func resultColumnFor(f Function) column.Column {
	return column.NewVector[int64](column.KindInt64)
}

// fieldPtr obtains a stable pointer to a state field for AggregateState
// storage. AggregateState stores uintptr handles into arena-owned memory;
// see arena_ptr.go for the unsafe conversion this requires.
func fieldPtr(field []byte) uintptr {
	return sliceDataPtr(field)
}
