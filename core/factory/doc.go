// Package factory instantiates pluggable modules (metrics sinks, journal
// backends) from configuration. A module is a type string plus a map of raw
// settings that the registered factory decodes into its own struct.
//
//	reg := factory.NewRegistry[journal.LogStore]()
//	reg.Register("jsonl", func(conf map[string]any) (journal.LogStore, error) {
//	    var c struct{ Path string `json:"path"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return journal.NewJSONLStore(c.Path)
//	})
package factory
