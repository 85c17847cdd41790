package engine

import (
	"go.uber.org/zap"

	"github.com/wippyai/il-weaver/errors"
	"github.com/wippyai/il-weaver/il"
)

// Config describes one splice: the two source methods in merge order, the
// method receiving the result, and the module whose reference table absorbs
// imported declarations.
type Config struct {
	// Top's body runs first in the merged method.
	Top *il.Method
	// Bottom's body runs second. Bottom may be the target method itself.
	Bottom *il.Method
	// Target receives the merged body on commit.
	Target *il.Method
	// TargetModule is the import context. Defaults to Target's module.
	TargetModule *il.Module
	Provider     Provider
	Logger       *zap.Logger
}

// Merge splices cfg.Top's body and cfg.Bottom's body into cfg.Target. The
// pipeline works on private clones throughout; cfg.Target is modified only
// by the final commit, and only when every prior stage succeeded. The one
// earlier side effect is importing referenced declarations into the target
// module's reference table, which is idempotent and harmless on failure.
func Merge(cfg Config) error {
	if cfg.Top == nil || cfg.Bottom == nil || cfg.Target == nil {
		return errors.New(errors.PhaseRead, errors.KindInvalidBody).
			Detail("merge requires top, bottom, and target methods").
			Build()
	}
	if cfg.Provider == nil {
		return errors.New(errors.PhaseRead, errors.KindInvalidBody).
			Detail("merge requires a provider").
			Build()
	}
	if cfg.Top.Body == nil || cfg.Bottom.Body == nil {
		return errors.New(errors.PhaseRead, errors.KindInvalidBody).
			Detail("source method without a body").
			Build()
	}
	if cfg.TargetModule == nil {
		cfg.TargetModule = cfg.Target.DeclaringModule()
	}

	m := &merger{
		cfg: cfg,
		log: nopIfNil(cfg.Logger).With(
			zap.String("top", cfg.Top.FullName()),
			zap.String("bottom", cfg.Bottom.FullName()),
			zap.String("target", cfg.Target.FullName()),
		),
		tf: newTransfuser(cfg.Provider, cfg.TargetModule),
	}
	return m.run()
}

type merger struct {
	cfg Config
	log *zap.Logger
	tf  *transfuser

	// captured source streams, never mutated
	top    []*il.Instruction
	bottom []*il.Instruction

	// handler clones, boundaries repointed as instructions are transfused
	handlers []*il.Handler

	varOffset  int
	readBottom bool
	appendRet  bool

	locals []*il.Local
	merged []*il.Instruction
}

func (m *merger) run() error {
	if err := m.readTop(); err != nil {
		return err
	}
	m.trimTop()

	m.readBottom = !m.topTerminates()
	if m.readBottom {
		if err := m.captureBottom(); err != nil {
			return err
		}
		m.trimBottom()
	} else {
		m.log.Debug("bottom body elided, top terminates unconditionally")
	}

	m.buildVariables()
	if err := m.transfuse(); err != nil {
		return err
	}
	if err := m.relink(); err != nil {
		return err
	}
	m.compact()
	return m.commit()
}

// readTop captures the top body's instruction order, computes the slot
// offset for the bottom body, and captures the top handler regions.
func (m *merger) readTop() error {
	body := m.cfg.Top.Body
	m.top = append(m.top, body.Instructions...)

	stored := NewBitSet(len(body.Locals))
	for _, in := range m.top {
		if idx, ok := in.StoreLocalIndex(); ok {
			stored.Set(idx)
		}
	}
	if max, ok := stored.Max(); ok {
		m.varOffset = max + 1
	}

	handlers, err := m.captureHandlers(body)
	if err != nil {
		return err
	}
	m.handlers = handlers

	m.log.Debug("read top body",
		zap.Int("instructions", len(m.top)),
		zap.Int("handlers", len(handlers)),
		zap.Int("var_offset", m.varOffset))
	return nil
}

// trimTop overlays the top body's trailing return as a no-op when the two
// source return types disagree, so control falls through into the bottom
// stream. A non-void top additionally overlays the return's immediate
// predecessor when its push count is exactly 1, discarding the now-unused
// return value. The heuristic is best effort; it trusts the classifier, not
// a dataflow analysis.
func (m *merger) trimTop() {
	if m.cfg.Top.Return == m.cfg.Bottom.Return {
		return
	}
	n := len(m.top)
	if n == 0 || !m.top[n-1].IsReturn() {
		return
	}
	m.tf.markNoop(m.top[n-1])
	m.log.Debug("trimmed top return", zap.Int32("offset", m.top[n-1].Offset))

	if m.cfg.Top.Return == il.Void || n < 2 {
		return
	}
	if prev := m.top[n-2]; Effect(prev).Pushes == 1 {
		m.tf.markNoop(prev)
		m.log.Debug("trimmed top return producer", zap.Int32("offset", prev.Offset))
	}
}

// topTerminates reports whether the trimmed top stream still ends in a live
// return, in which case control never reaches the bottom body.
func (m *merger) topTerminates() bool {
	n := len(m.top)
	if n == 0 {
		return false
	}
	last := m.top[n-1]
	return last.IsReturn() && !m.tf.noop[last]
}

func (m *merger) captureBottom() error {
	body := m.cfg.Bottom.Body
	m.bottom = append(m.bottom, body.Instructions...)

	handlers, err := m.captureHandlers(body)
	if err != nil {
		return err
	}
	m.handlers = append(m.handlers, handlers...)

	m.log.Debug("read bottom body",
		zap.Int("instructions", len(m.bottom)),
		zap.Int("handlers", len(handlers)))
	return nil
}

// trimBottom applies the same trailing-return overlay to the bottom stream
// when the final method returns no value but the bottom method does, then
// schedules a fresh terminating return so the merged body keeps exactly one.
func (m *merger) trimBottom() {
	if m.cfg.Target.Return != il.Void || m.cfg.Bottom.Return == il.Void {
		return
	}
	n := len(m.bottom)
	if n > 0 && m.bottom[n-1].IsReturn() {
		m.tf.markNoop(m.bottom[n-1])
		if n >= 2 && Effect(m.bottom[n-2]).Pushes == 1 {
			m.tf.markNoop(m.bottom[n-2])
		}
	}
	m.appendRet = true
	m.log.Debug("trimmed bottom return, terminating return scheduled")
}

// captureHandlers clones the body's handler regions so boundary rewriting
// never touches the source body, importing each catch type into the target
// module.
func (m *merger) captureHandlers(body *il.Body) ([]*il.Handler, error) {
	handlers := make([]*il.Handler, 0, len(body.Handlers))
	for _, h := range body.Handlers {
		catch, err := m.tf.importCatch(h.CatchType)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, &il.Handler{
			TryStart:     h.TryStart,
			TryEnd:       h.TryEnd,
			HandlerStart: h.HandlerStart,
			HandlerEnd:   h.HandlerEnd,
			CatchType:    catch,
			Kind:         h.Kind,
		})
	}
	return handlers, nil
}

// buildVariables lays out the merged slot list: the top body's slots in
// order, then the bottom body's. A slot's final index is its position in
// the concatenated list.
func (m *merger) buildVariables() {
	add := func(src []*il.Local) {
		for _, l := range src {
			m.locals = append(m.locals, &il.Local{
				Name:  l.Name,
				Type:  l.Type,
				Index: len(m.locals),
			})
		}
	}
	add(m.cfg.Top.Body.Locals)
	if m.readBottom {
		add(m.cfg.Bottom.Body.Locals)
	}
	m.log.Debug("built merged slot list", zap.Int("slots", len(m.locals)))
}

func (m *merger) lookupSlot(idx int) *il.Local {
	if idx < 0 || idx >= len(m.locals) {
		return nil
	}
	return m.locals[idx]
}

// transfuse clones both streams into the merged list in order, rebinding
// slot references through the remapper and repointing handler boundaries
// as each clone is produced.
func (m *merger) transfuse() error {
	emit := func(stream []*il.Instruction, rm *Remapper) error {
		for _, in := range stream {
			out, err := m.tf.clone(in, rm)
			if err != nil {
				return err
			}
			m.merged = append(m.merged, out)
			Patch(m.handlers, in, out)
		}
		return nil
	}

	if err := emit(m.top, &Remapper{Delta: 0, Lookup: m.lookupSlot}); err != nil {
		return err
	}
	if m.readBottom {
		if err := emit(m.bottom, &Remapper{Delta: m.varOffset, Lookup: m.lookupSlot}); err != nil {
			return err
		}
	}
	if m.appendRet {
		m.merged = append(m.merged, &il.Instruction{Opcode: il.OpRet})
	}

	offset := int32(0)
	for _, in := range m.merged {
		in.Offset = offset
		offset += in.Size()
	}

	m.log.Debug("transfused streams", zap.Int("instructions", len(m.merged)))
	return nil
}

// relink is a defensive canonicalization sweep. The transfusion identity
// map guarantees each source instruction has exactly one clone, so under
// normal operation every operand already points into the merged list and
// relink changes nothing; it repoints any stale reference it does find and
// fails on references with no clone at all. Running it twice produces no
// further changes.
func (m *merger) relink() error {
	inList := make(map[*il.Instruction]bool, len(m.merged))
	for _, in := range m.merged {
		inList[in] = true
	}

	canonical := func(ref *il.Instruction) (*il.Instruction, error) {
		if inList[ref] {
			return ref, nil
		}
		clone, err := m.tf.cloneOf(ref)
		if err != nil || !inList[clone] {
			return nil, errors.New(errors.PhaseLink, errors.KindInvalidBody).
				Detail("reference to instruction outside merged list at %s", fmtOffset(ref)).
				Build()
		}
		return clone, nil
	}

	changes := 0
	for _, in := range m.merged {
		switch op := in.Operand.(type) {
		case il.TargetOperand:
			c, err := canonical(op.Target)
			if err != nil {
				return err
			}
			if c != op.Target {
				changes += PatchBranches(m.merged, op.Target, c)
				changes += Patch(m.handlers, op.Target, c)
			}
		case il.SwitchOperand:
			for _, t := range op.Targets {
				c, err := canonical(t)
				if err != nil {
					return err
				}
				if c != t {
					changes += PatchBranches(m.merged, t, c)
					changes += Patch(m.handlers, t, c)
				}
			}
		}
	}
	for _, h := range m.handlers {
		for _, slot := range h.Boundaries() {
			c, err := canonical(*slot)
			if err != nil {
				return err
			}
			if c != *slot {
				*slot = c
				changes++
			}
		}
	}

	m.log.Debug("relinked merged list", zap.Int("changes", changes))
	return nil
}

// compact drops every no-op that no branch operand and no handler boundary
// references, then reassigns offsets as the prefix sum of instruction sizes.
func (m *merger) compact() {
	referenced := make(map[*il.Instruction]bool)
	for _, in := range m.merged {
		for _, t := range in.BranchTargets() {
			referenced[t] = true
		}
	}
	for _, h := range m.handlers {
		for _, slot := range h.Boundaries() {
			referenced[*slot] = true
		}
	}

	kept := m.merged[:0]
	removed := 0
	for _, in := range m.merged {
		if in.Opcode == il.OpNop && !referenced[in] {
			removed++
			continue
		}
		kept = append(kept, in)
	}
	m.merged = kept

	offset := int32(0)
	for _, in := range m.merged {
		in.Offset = offset
		offset += in.Size()
	}

	m.log.Debug("compacted merged list",
		zap.Int("removed", removed),
		zap.Int("instructions", len(m.merged)))
}

// commit validates the merged body and swaps it into the target method.
// Instruction list, slot list, and handler list replace the old body
// together; nothing before this point touched the target.
func (m *merger) commit() error {
	body := &il.Body{
		Instructions: m.merged,
		Locals:       m.locals,
		Handlers:     m.handlers,
		InitLocals:   len(m.locals) > 0,
	}
	if err := il.ValidateBody(body); err != nil {
		return errors.New(errors.PhaseCommit, errors.KindInvalidBody).
			Cause(err).
			Detail("merged body failed validation").
			Build()
	}
	body.MaxStack = EstimateMaxStack(body, m.cfg.Target.Return)

	target := m.cfg.Target.Body
	if target == nil {
		target = &il.Body{}
		m.cfg.Target.Body = target
	}
	target.Instructions = body.Instructions
	target.Locals = body.Locals
	target.Handlers = body.Handlers
	target.MaxStack = body.MaxStack
	target.InitLocals = body.InitLocals

	m.log.Debug("committed merged body",
		zap.Int("instructions", len(body.Instructions)),
		zap.Int("slots", len(body.Locals)),
		zap.Int("handlers", len(body.Handlers)),
		zap.Int("max_stack", body.MaxStack))
	return nil
}
