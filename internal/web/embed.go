// Пакет web — встроенные HTML-шаблоны публичных страниц.
// Содержит страницу загрузки файла и страницу скачивания по ссылке.
// Файлы встраиваются в бинарник через //go:embed.
package web

import (
	"embed"
	"io/fs"
)

// content — встроенная файловая система с шаблонами страниц.
//
//go:embed templates/*.html
var content embed.FS

// Templates возвращает fs.FS со встроенными шаблонами.
func Templates() fs.FS {
	return content
}
