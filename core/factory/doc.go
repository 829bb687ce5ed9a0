// Package factory provides a small generic registry used to instantiate modules
// from configuration. Modules are defined by a type string and a map of raw
// settings. Factories decode the settings into typed structs and return the
// concrete implementation.
//
// Example usage:
//
//	reg := factory.NewRegistry[evaluator.Evaluator]("evaluator")
//	reg.Register("http", func(conf map[string]any) (evaluator.Evaluator, error) {
//	    var c struct{ URL string `json:"url"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return simulator.NewHTTPEvaluator(c.URL), nil
//	})
//	ev, err := reg.Create(factory.ModuleConfig{Type: "http", Conf: map[string]any{"url": "http://sim:8080"}})
package factory
