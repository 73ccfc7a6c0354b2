package storage

import "time"

// Orphans returns the objects whose key is not in referenced, in the order of
// objects. Objects modified at or after cutoff are skipped: an upload writes
// its file before its row, so a recent file may just not be referenced yet.
// A zero cutoff keeps every unreferenced object.
func Orphans(objects []ObjectInfo, referenced []string, cutoff time.Time) []ObjectInfo {
	known := make(map[string]struct{}, len(referenced))
	for _, k := range referenced {
		known[k] = struct{}{}
	}
	var out []ObjectInfo
	for _, o := range objects {
		if _, ok := known[o.Key]; ok {
			continue
		}
		if !cutoff.IsZero() && !o.LastModified.Before(cutoff) {
			continue
		}
		out = append(out, o)
	}
	return out
}
