// template.go — ленивая инициализация HTML-шаблонов публичных страниц.
package handlers

import (
	"html/template"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/bigkaa/boltshare/internal/web"
)

var (
	once sync.Once
	t    *template.Template
)

// getTemplate возвращает набор шаблонов публичных страниц.
// Парсинг выполняется один раз при первом обращении.
func getTemplate() *template.Template {
	once.Do(func() {
		funcs := template.FuncMap{
			"humanizeSize": humanizeSize,
		}
		t = template.Must(template.New("pages").
			Funcs(funcs).
			ParseFS(web.Templates(), "templates/*.html"),
		)
	})
	return t
}

func humanizeSize(size int64) string {
	return humanize.Bytes(uint64(size))
}
