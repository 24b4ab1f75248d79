/*
kilndemo wires up the engine package against a small, hard-coded panel
tree to exercise the full Initialize -> Run -> Shutdown lifecycle.
*/
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/kiln-engine/kiln/core"
	"github.com/kiln-engine/kiln/engine"
	"github.com/kiln-engine/kiln/geom"
	"github.com/kiln-engine/kiln/ui"
)

// demoTree is the toy UI tree the demo publishes every frame: a label
// and a button, laid out in a column. The root is a layout node only;
// Materialize emits no widget for it, so its Style is not drawn.
var demoTree = &ui.Node{
	Kind:    ui.LayoutColumn,
	Spacing: 8,
	Style:   ui.Style{BasePadding: 8, Color: geom.Color{X: 0.12, Y: 0.12, Z: 0.14, W: 1}},
	Children: []*ui.Node{
		{
			WidgetKind: ui.KindLabel,
			ID:         "title",
			Text:       "kiln",
			Width:      200,
			Height:     24,
			Style:      ui.Style{TextColor: geom.Color{X: 1, Y: 1, Z: 1, W: 1}},
		},
		{
			WidgetKind: ui.KindButton,
			ID:         "quit",
			Text:       "Quit",
			Width:      120,
			Height:     32,
			Style:      ui.Style{Color: geom.Color{X: 0.25, Y: 0.4, Z: 0.9, W: 1}},
		},
	},
}

func main() {
	cfg := core.DefaultConfig()
	if path := os.Getenv("KILN_CONFIG"); path != "" {
		if loaded, err := core.LoadConfig(path); err == nil {
			cfg = loaded
		}
	}

	e := engine.New()
	if err := e.Initialize(cfg); err != nil {
		panic(err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	go func() {
		<-sigCh
		_ = e.Shutdown()
	}()

	transformer := geom.NewCoordinateTransformer(1, 1, 1280, 720)

	if err := e.Run(func(dt float64, back *engine.Packet) {
		widgets, areas := ui.Materialize(demoTree, geom.Vec2{})
		back.Frame = &ui.Frame{Widgets: widgets, ScrollAreas: areas, Transformer: *transformer}
		back.Display = ui.BuildDisplayList(back.Frame, nil)
	}); err != nil {
		panic(err)
	}

	_ = e.Shutdown()
}
