// template.go — композиция письма-уведомления.
package mail

import (
	"fmt"
	"html/template"
	"strings"
)

// emailSubject — тема письма-уведомления.
const emailSubject = "boltShare: с вами поделились файлом"

// bodyHTML — HTML-шаблон тела письма. Текст про срок действия ссылки
// информационный: истечение сервером не навязывается, удаление выполняет
// опциональный reaper (BS_REAPER_INTERVAL).
var bodyHTML = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #333;">
  <h2>boltShare</h2>
  <p><b>{{.Sender}}</b> поделился с вами файлом.</p>
  <p>Размер: {{.Size}}<br>Ссылка действительна: {{.Expires}}</p>
  <p><a href="{{.DownloadLink}}">Скачать файл</a></p>
  <p style="color: #888; font-size: 12px;">Если ссылка не открывается, скопируйте адрес в браузер:<br>{{.DownloadLink}}</p>
</body>
</html>
`))

// bodyParams — данные для шаблона письма.
type bodyParams struct {
	Sender       string
	DownloadLink string
	Size         string
	Expires      string
}

// Compose собирает письмо-уведомление: тема, plain-text и HTML-тело.
// sender — адрес отправителя, downloadLink — абсолютная ссылка на файл,
// sizeText — человекочитаемый размер, expiresText — срок действия ссылки.
func Compose(sender, to, downloadLink, sizeText, expiresText string) (Message, error) {
	var html strings.Builder
	err := bodyHTML.Execute(&html, bodyParams{
		Sender:       sender,
		DownloadLink: downloadLink,
		Size:         sizeText,
		Expires:      expiresText,
	})
	if err != nil {
		return Message{}, fmt.Errorf("ошибка рендеринга письма: %w", err)
	}

	text := fmt.Sprintf("%s поделился с вами файлом (%s).\nСкачать: %s\nСсылка действительна: %s\n",
		sender, sizeText, downloadLink, expiresText)

	return Message{
		From:    sender,
		To:      to,
		Subject: emailSubject,
		Text:    text,
		HTML:    html.String(),
	}, nil
}
