//go:build js && wasm

package main

import (
	"encoding/json"
	"syscall/js"

	"github.com/inamate/drawcore/internal/engine"
	"github.com/inamate/drawcore/internal/geom"
	"github.com/inamate/drawcore/internal/render"
)

var eng *engine.Engine

func main() {
	eng = engine.NewEngine(0)

	drawcoreEngine := js.Global().Get("Object").New()

	// --- Commands (frontend → engine) ---
	drawcoreEngine.Set("loadDocument", js.FuncOf(loadDocument))
	drawcoreEngine.Set("loadSampleDocument", js.FuncOf(loadSampleDocument))
	drawcoreEngine.Set("importSVG", js.FuncOf(importSVG))
	drawcoreEngine.Set("setViewport", js.FuncOf(setViewport))
	drawcoreEngine.Set("setSelection", js.FuncOf(setSelection))
	drawcoreEngine.Set("selectAt", js.FuncOf(selectAt))
	drawcoreEngine.Set("selectArea", js.FuncOf(selectArea))
	drawcoreEngine.Set("beginDrag", js.FuncOf(beginDrag))
	drawcoreEngine.Set("dragTo", js.FuncOf(dragTo))
	drawcoreEngine.Set("endDrag", js.FuncOf(endDrag))
	drawcoreEngine.Set("applyAttributes", js.FuncOf(applyAttributes))
	drawcoreEngine.Set("bringToFront", js.FuncOf(func(js.Value, []js.Value) any { eng.BringToFront(); return nil }))
	drawcoreEngine.Set("sendToBack", js.FuncOf(func(js.Value, []js.Value) any { eng.SendToBack(); return nil }))
	drawcoreEngine.Set("deleteSelection", js.FuncOf(func(js.Value, []js.Value) any { eng.DeleteSelection(); return nil }))
	drawcoreEngine.Set("duplicateSelection", js.FuncOf(duplicateSelection))
	drawcoreEngine.Set("undo", js.FuncOf(func(js.Value, []js.Value) any { return result(eng.Undo()) }))
	drawcoreEngine.Set("redo", js.FuncOf(func(js.Value, []js.Value) any { return result(eng.Redo()) }))

	// --- Queries (frontend ← engine) ---
	drawcoreEngine.Set("render", js.FuncOf(renderCommands))
	drawcoreEngine.Set("needsRender", js.FuncOf(func(js.Value, []js.Value) any { return eng.NeedsRender() }))
	drawcoreEngine.Set("hitTest", js.FuncOf(hitTest))
	drawcoreEngine.Set("getSelectionBounds", js.FuncOf(getSelectionBounds))
	drawcoreEngine.Set("getSelection", js.FuncOf(getSelection))
	drawcoreEngine.Set("getHistory", js.FuncOf(getHistory))
	drawcoreEngine.Set("export", js.FuncOf(export))

	js.Global().Set("drawcoreEngine", drawcoreEngine)

	// Signal that WASM is ready
	js.Global().Set("drawcoreWasmReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

func result(err error) any {
	if err != nil {
		return js.ValueOf(map[string]any{"error": err.Error()})
	}
	return js.ValueOf(map[string]any{"ok": true})
}

func floatArgs(args []js.Value, n int) ([]float64, bool) {
	if len(args) < n {
		return nil, false
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = args[i].Float()
	}
	return out, true
}

func toJSON(v any) string {
	data, _ := json.Marshal(v)
	return string(data)
}

// --- Command Handlers ---

func loadDocument(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return js.ValueOf(map[string]any{"error": "missing document JSON"})
	}
	return result(eng.LoadDocument(args[0].String()))
}

func loadSampleDocument(this js.Value, args []js.Value) any {
	eng.LoadSampleDocument()
	return result(nil)
}

func importSVG(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return js.ValueOf(map[string]any{"error": "missing SVG"})
	}
	n, err := eng.ImportSVG(args[0].String())
	if err != nil {
		return result(err)
	}
	return js.ValueOf(map[string]any{"ok": true, "imported": n})
}

func setViewport(this js.Value, args []js.Value) any {
	v, ok := floatArgs(args, 3)
	if !ok {
		return nil
	}
	eng.SetViewport(render.Viewport{Scale: v[0], OffsetX: v[1], OffsetY: v[2]})
	return nil
}

func setSelection(this js.Value, args []js.Value) any {
	if len(args) < 1 || args[0].Type() != js.TypeObject {
		eng.SetSelection(nil)
		return nil
	}

	arr := args[0]
	ids := make([]string, arr.Length())
	for i := range ids {
		ids[i] = arr.Index(i).String()
	}
	eng.SetSelection(ids)
	return nil
}

func selectAt(this js.Value, args []js.Value) any {
	v, ok := floatArgs(args, 2)
	if !ok {
		return ""
	}
	extend := len(args) > 2 && args[2].Truthy()
	return eng.SelectAt(v[0], v[1], extend)
}

func selectArea(this js.Value, args []js.Value) any {
	v, ok := floatArgs(args, 4)
	if !ok {
		return nil
	}
	return result(eng.SelectArea(geom.R(v[0], v[1], v[2], v[3])))
}

func beginDrag(this js.Value, args []js.Value) any {
	v, ok := floatArgs(args, 2)
	if !ok {
		return false
	}
	return eng.BeginDrag(v[0], v[1])
}

func dragTo(this js.Value, args []js.Value) any {
	v, ok := floatArgs(args, 2)
	if !ok {
		return false
	}
	return eng.DragTo(v[0], v[1])
}

func endDrag(this js.Value, args []js.Value) any {
	eng.EndDrag()
	return nil
}

func applyAttributes(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return js.ValueOf(map[string]any{"error": "missing attributes JSON"})
	}
	return result(eng.ApplyAttributes(args[0].String()))
}

func duplicateSelection(this js.Value, args []js.Value) any {
	dx, dy := 10.0, 10.0
	if v, ok := floatArgs(args, 2); ok {
		dx, dy = v[0], v[1]
	}
	eng.DuplicateSelection(dx, dy)
	return nil
}

// --- Query Handlers ---

func renderCommands(this js.Value, args []js.Value) any {
	full := len(args) > 0 && args[0].Truthy()
	out, err := eng.Render(full)
	if err != nil {
		return "[]"
	}
	return out
}

func hitTest(this js.Value, args []js.Value) any {
	v, ok := floatArgs(args, 2)
	if !ok {
		return ""
	}
	return eng.HitTest(v[0], v[1])
}

func getSelectionBounds(this js.Value, args []js.Value) any {
	return toJSON(eng.SelectionBounds())
}

func getSelection(this js.Value, args []js.Value) any {
	return toJSON(eng.Selection())
}

func getHistory(this js.Value, args []js.Value) any {
	return toJSON(eng.History())
}

func export(this js.Value, args []js.Value) any {
	format := "json"
	if len(args) > 0 && args[0].Type() == js.TypeString {
		format = args[0].String()
	}
	out, err := eng.Export(format)
	if err != nil {
		return result(err)
	}
	return out
}
