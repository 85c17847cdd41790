// Package ilweaver splices independently-compiled stack-machine method
// bodies into one consistent merged body, so foreign logic can be injected
// at the start or end of an existing routine without recompiling it.
//
// # Architecture Overview
//
// The library is organized into a few packages with distinct
// responsibilities:
//
//	il-weaver/           Module root
//	├── il/              Instruction model, binary container codec,
//	│                    body validation, disassembler
//	├── weave/           Public splice API: InjectBefore, InjectAfter
//	│   └── internal/engine/
//	│                    The merge pipeline: trimming, transfusion,
//	│                    slot remapping, relinking, compaction, commit
//	├── errors/          Structured error types with phase and kind
//	└── cmd/ilweave/     Command-line driver with plan files and a TUI
//
// # Quick Start
//
// Load two module containers and inject a hook:
//
//	target, err := il.Decode(targetBytes)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	source, err := il.Decode(hookBytes)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	method, err := weave.InjectBefore(target, "App::Main", source, "Hooks::Enter", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(strings.Join(il.Disassemble(method.Body), "\n"))
//
//	out, err := il.Encode(target)
//
// # Merge Semantics
//
// A splice places one body (the top) ahead of the other (the bottom). When
// the two declare different return types, the top's trailing return is
// overlaid as a no-op so control falls through, and the instruction that
// computed the discarded return value is overlaid too when the stack-effect
// classifier identifies it. A top that still ends in a live return elides
// the bottom entirely: control that already returned never reaches it.
// Bottom slot references shift past the top's slot range, re-encoded in the
// shortest form for the new index. Unreferenced no-ops are compacted away;
// no-ops targeted by a branch or handler boundary survive.
//
// # Atomicity
//
// Every pipeline stage before the final commit operates on private clones.
// A failed splice leaves the target method byte-for-byte as it was, except
// that declarations referenced by the already-processed instructions may
// have been imported into the target module's reference table, which is
// idempotent and harmless.
//
// # Thread Safety
//
// A merge is single-threaded and run-to-completion. The one shared mutable
// resource is a module's reference table; concurrent splices importing into
// the same target module must be serialized by the caller.
package ilweaver
