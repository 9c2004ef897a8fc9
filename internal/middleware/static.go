package middleware

import (
	"net/http"
	"os"
	"path/filepath"
)

const placeholderSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 320 200"><rect width="320" height="200" fill="#eef1f4"/><path d="M60 150V90l50-30 50 30v60h-30v-35h-40v35z" fill="#a8b2bd"/><rect x="190" y="70" width="70" height="80" fill="#a8b2bd"/><rect x="200" y="80" width="14" height="14" fill="#eef1f4"/><rect x="222" y="80" width="14" height="14" fill="#eef1f4"/><rect x="200" y="102" width="14" height="14" fill="#eef1f4"/><rect x="222" y="102" width="14" height="14" fill="#eef1f4"/><text x="160" y="180" text-anchor="middle" font-family="Arial" font-size="14" fill="#6b7683">HOTEL</text></svg>`

// StaticFileServer serves hotel photos from dir, falling back to a
// placeholder image when the requested file does not exist.
func StaticFileServer(dir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.Clean(r.URL.Path))

		if _, err := os.Stat(path); err == nil {
			w.Header().Set("Cache-Control", "public, max-age=2592000")
			http.ServeFile(w, r, path)
			return
		}

		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Write([]byte(placeholderSVG))
	})
}
