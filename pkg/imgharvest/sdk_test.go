package imgharvest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExtractAndDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("img"))
	}))
	defer srv.Close()

	page := `<div class="tile"><img data-src="` + srv.URL + `/a.jpg"><b>Acme Co</b></div>
<div class="tile"><img data-src="` + srv.URL + `/b.jpg"></div>`

	dir := t.TempDir()
	h := New(
		WithSelectors(".tile", "img", "b", ""),
		WithOutputDir(dir),
		WithoutDelays(),
	)
	h.cfg.Extract.ImageAttribute = "data-src"

	records, err := h.ExtractHTML(context.Background(), strings.NewReader(page))
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 || records[0].BrandLabel != "Acme Co" || records[1].BrandLabel != "product_1" {
		t.Fatalf("unexpected records: %+v", records)
	}

	outcomes, err := h.Download(context.Background(), records)
	if err != nil {
		t.Fatal(err)
	}
	for _, o := range outcomes {
		if !o.OK() {
			t.Errorf("download failed: %s", o.Status)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "0_Acme_Co.jpg")); err != nil {
		t.Errorf("expected image file: %v", err)
	}
	if h.Stats()["imgharvest_items_emitted_total"] != 2 {
		t.Errorf("unexpected stats: %v", h.Stats())
	}
}
