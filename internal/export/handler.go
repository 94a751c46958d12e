// Package export converts uploaded documents between the drawing formats
// without touching stored drawings.
package export

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/inamate/drawcore/internal/document"
	"github.com/inamate/drawcore/internal/drawing"
)

const maxUploadSize = 16 << 20 // 16MB

var contentTypes = map[string]string{
	"json": "application/json",
	"svg":  "image/svg+xml",
}

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

// Convert reads the request body with the "from" format and writes it
// back with the "to" format. Both default to json.
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	from := formValue(r, "from", "json")
	to := formValue(r, "to", "json")
	contentType, ok := contentTypes[to]
	if !ok {
		http.Error(w, "invalid target format: must be json or svg", http.StatusBadRequest)
		return
	}

	name := sanitizeName(formValue(r, "name", "drawing"))

	d := drawing.New()
	document.InstallFormats(d)
	in, ok := d.InputFormat(from)
	if !ok {
		http.Error(w, "invalid source format: must be json or svg", http.StatusBadRequest)
		return
	}
	if err := in.Read(r.Body, d); err != nil {
		slog.Debug("convert read failed", "from", from, "error", err)
		http.Error(w, fmt.Sprintf("read %s: %v", from, err), http.StatusBadRequest)
		return
	}

	out, _ := d.OutputFormat(to)
	var buf bytes.Buffer
	if err := out.Write(&buf, d); err != nil {
		slog.Error("convert write failed", "to", to, "error", err)
		http.Error(w, fmt.Sprintf("write %s: %v", to, err), http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, name, to))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Write(buf.Bytes())

	slog.Info("convert complete", "from", from, "to", to, "figures", d.ChildCount(), "size", buf.Len())
}

func formValue(r *http.Request, key, def string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	return def
}

func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, name)
}
