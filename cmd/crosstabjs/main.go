//go:build js && wasm

// Command crosstabjs exposes the dashboard runtime to JavaScript.
//
// The page defines onRender(chartID, seriesJSON) and onVisibility(id,
// visible), then calls:
//
//	crosstabLoad(bundleJSON, assets)  // assets: {id: assetJSON}, optional
//	crosstabSet(id, valueJSON, debounce) // debounce optional, for sliders and text
//	crosstabReset()
//
// Every function returns null on success and an error message otherwise.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"syscall/js"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/crosstab/crosstab-go/internal/logging"
	"github.com/crosstab/crosstab-go/pipeline"
	"github.com/crosstab/crosstab-go/runtime"
	"github.com/crosstab/crosstab-go/unified"
)

const debounceDelay = 150 * time.Millisecond

type page struct {
	log       *logrus.Entry
	machine   *runtime.Machine
	debouncer *runtime.Debouncer
}

func main() {
	logger, err := logging.New(os.Stderr, "warn", "text")
	if err != nil {
		panic(err)
	}
	p := &page{log: logrus.NewEntry(logger)}

	global := js.Global()
	global.Set("crosstabLoad", js.FuncOf(p.load))
	global.Set("crosstabSet", js.FuncOf(p.set))
	global.Set("crosstabReset", js.FuncOf(p.reset))

	select {}
}

func result(err error) interface{} {
	if err == nil {
		return js.Null()
	}
	return err.Error()
}

func (p *page) load(_ js.Value, args []js.Value) interface{} {
	if len(args) < 1 || args[0].Type() != js.TypeString {
		return result(fmt.Errorf("crosstabLoad: bundle JSON is required"))
	}
	files := map[string][]byte{unified.BundleFile: []byte(args[0].String())}
	if len(args) > 1 && args[1].Type() == js.TypeObject {
		keys := js.Global().Get("Object").Call("keys", args[1])
		for i := 0; i < keys.Length(); i++ {
			id := keys.Index(i).String()
			files[path.Join(unified.AssetDir, id+".json")] = []byte(args[1].Get(id).String())
		}
	}

	bundle, err := unified.FromSiteFiles(files)
	if err != nil {
		return result(err)
	}
	prog, err := runtime.Load(bundle)
	if err != nil {
		return result(err)
	}

	if p.debouncer != nil {
		p.debouncer.Stop()
	}
	p.machine = runtime.NewMachine(prog,
		runtime.WithLogger(p.log),
		runtime.WithRenderer("", runtime.RenderFunc(p.render)),
		runtime.WithVisibility(p.visibility),
	)
	p.debouncer = runtime.NewDebouncer(p.machine, debounceDelay, func(id string, err error) {
		p.log.WithField("input", id).WithError(err).Warn("debounced input rejected")
	})
	p.log.WithField("bundle", bundle.ID).Info("loaded bundle")
	return result(p.machine.Start())
}

func (p *page) set(_ js.Value, args []js.Value) interface{} {
	if p.machine == nil {
		return result(fmt.Errorf("crosstabSet: no bundle loaded"))
	}
	if len(args) < 2 {
		return result(fmt.Errorf("crosstabSet: id and value are required"))
	}
	var value interface{}
	if err := json.Unmarshal([]byte(args[1].String()), &value); err != nil {
		return result(fmt.Errorf("crosstabSet: value: %w", err))
	}
	id := args[0].String()
	if len(args) > 2 && args[2].Truthy() {
		p.debouncer.Set(id, value)
		return result(nil)
	}
	return result(p.machine.SetInput(id, value))
}

func (p *page) reset(js.Value, []js.Value) interface{} {
	if p.machine == nil {
		return result(fmt.Errorf("crosstabReset: no bundle loaded"))
	}
	p.debouncer.Stop()
	return result(p.machine.Reset())
}

func (p *page) render(chartID string, data pipeline.SeriesData) {
	fn := js.Global().Get("onRender")
	if fn.Type() != js.TypeFunction {
		return
	}
	payload, err := json.Marshal(data)
	if err != nil {
		p.log.WithField("chart", chartID).WithError(err).Error("encoding series")
		return
	}
	fn.Invoke(chartID, string(payload))
}

func (p *page) visibility(id string, visible bool) {
	if fn := js.Global().Get("onVisibility"); fn.Type() == js.TypeFunction {
		fn.Invoke(id, visible)
	}
}
