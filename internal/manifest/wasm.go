package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/git-pkgs/git-pkgs/internal/types"
)

// wasmOutput is the JSON shape a WASM plugin's parse export writes into
// shared memory: the systems-language analogue of ParseResult, since the
// guest module cannot share Go types with the host directly.
type wasmOutput struct {
	Recognized   bool         `json:"recognized"`
	Ecosystem    string       `json:"ecosystem"`
	Kind         string       `json:"kind"`
	Dependencies []Dependency `json:"dependencies"`
}

// WasmParser adapts a compiled WASM module to the ManifestParser interface.
// The module must export:
//
//	recognize(path_ptr, path_len) -> i32          (0 = false, nonzero = true)
//	parse(path_ptr, path_len, content_ptr, content_len) -> (out_ptr, out_len)
//	alloc(size) -> ptr                            (host uses this to write inputs)
//
// parse's result is a pointer/length pair into the module's own linear
// memory holding the JSON-encoded wasmOutput; the host reads it out after
// the call returns.
type WasmParser struct {
	name    string
	runtime wazero.Runtime
	module  api.Module
	alloc   api.Function
	recFn   api.Function
	parseFn api.Function
}

// LoadWasmParser compiles and instantiates the module at modulePath.
func LoadWasmParser(ctx context.Context, modulePath string) (*WasmParser, error) {
	wasmBytes, err := os.ReadFile(modulePath)
	if err != nil {
		return nil, fmt.Errorf("reading wasm module %s: %w", modulePath, err)
	}

	runtime := wazero.NewRuntime(ctx)
	module, err := runtime.Instantiate(ctx, wasmBytes)
	if err != nil {
		_ = runtime.Close(ctx)
		return nil, fmt.Errorf("instantiating wasm module %s: %w", modulePath, err)
	}

	alloc := module.ExportedFunction("alloc")
	recFn := module.ExportedFunction("recognize")
	parseFn := module.ExportedFunction("parse")
	if alloc == nil || recFn == nil || parseFn == nil {
		_ = runtime.Close(ctx)
		return nil, fmt.Errorf("wasm module %s missing required export (alloc/recognize/parse)", modulePath)
	}

	return &WasmParser{
		name:    path.Base(modulePath),
		runtime: runtime,
		module:  module,
		alloc:   alloc,
		recFn:   recFn,
		parseFn: parseFn,
	}, nil
}

// Close releases the module's runtime. Safe to call once per WasmParser.
func (w *WasmParser) Close(ctx context.Context) error {
	return w.runtime.Close(ctx)
}

func (w *WasmParser) Name() string { return "wasm:" + w.name }

func (w *WasmParser) writeBytes(ctx context.Context, data []byte) (ptr uint32, length uint32, err error) {
	length = uint32(len(data))
	results, err := w.alloc.Call(ctx, uint64(length))
	if err != nil {
		return 0, 0, fmt.Errorf("wasm alloc: %w", err)
	}
	ptr = uint32(results[0])
	if length > 0 && !w.module.Memory().Write(ptr, data) {
		return 0, 0, fmt.Errorf("wasm memory write out of range")
	}
	return ptr, length, nil
}

func (w *WasmParser) Recognizes(p string) bool {
	ctx := context.Background()
	ptr, length, err := w.writeBytes(ctx, []byte(p))
	if err != nil {
		return false
	}
	results, err := w.recFn.Call(ctx, uint64(ptr), uint64(length))
	if err != nil || len(results) == 0 {
		return false
	}
	return results[0] != 0
}

func (w *WasmParser) Parse(p string, content []byte) (ParseResult, bool) {
	ctx := context.Background()
	pathPtr, pathLen, err := w.writeBytes(ctx, []byte(p))
	if err != nil {
		return ParseResult{}, false
	}
	contentPtr, contentLen, err := w.writeBytes(ctx, content)
	if err != nil {
		return ParseResult{}, false
	}

	results, err := w.parseFn.Call(ctx, uint64(pathPtr), uint64(pathLen), uint64(contentPtr), uint64(contentLen))
	if err != nil || len(results) < 2 {
		return ParseResult{}, false
	}
	outPtr, outLen := uint32(results[0]), uint32(results[1])
	raw, ok := w.module.Memory().Read(outPtr, outLen)
	if !ok {
		return ParseResult{}, false
	}

	var out wasmOutput
	if err := json.Unmarshal(raw, &out); err != nil || !out.Recognized {
		return ParseResult{}, false
	}
	kind := types.KindManifest
	if out.Kind == string(types.KindLockfile) {
		kind = types.KindLockfile
	}
	return ParseResult{Ecosystem: out.Ecosystem, Kind: kind, Dependencies: out.Dependencies}, true
}
