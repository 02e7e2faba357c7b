package web

import (
	"html/template"
	"net/http"

	"calwidget/internal/engine"
	appLog "calwidget/internal/log"
	"calwidget/internal/model"
)

// widgetTemplate is the server-rendered HTML view of the day buckets. It is
// intentionally plain: the dashboard host supplies the surrounding theme.
// The root element exposes data-ready="true" once rendered so the capture
// step knows when to take its screenshot.
var widgetTemplate = template.Must(template.New("widget").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Calendar</title>
<style>
body { font-family: sans-serif; margin: 0; padding: 12px; }
.day { margin-bottom: 10px; }
.day.today { background: #fffbe6; }
.day h2 { font-size: 15px; margin: 0 0 4px 0; border-bottom: 1px solid #ccc; }
.event { display: flex; gap: 6px; font-size: 13px; padding: 2px 0; }
.event .time { color: #666; min-width: 88px; }
.event .origin { font-size: 11px; color: #fff; border-radius: 3px; padding: 0 4px; align-self: center; }
.event progress { width: 60px; align-self: center; }
.failed { color: #a00; font-size: 12px; margin-top: 8px; }
</style>
</head>
<body>
<div class="widget" data-ready="true" data-state="{{.View.State}}">
{{range .Days}}
<div class="day{{if .IsToday}}{{if $.HighlightToday}} today{{end}}{{end}}">
<h2>{{.Label}}</h2>
{{range .Events}}
<div class="event">
<span class="time">{{.TimeLabel}}</span>
{{if .Link}}<a href="{{.Link}}">{{.Title}}</a>{{else}}<span>{{.Title}}</span>{{end}}
{{if .OriginLabel}}<span class="origin" style="background:{{.OriginColor}}">{{.OriginLabel}}</span>{{end}}
{{if .Progress}}<progress max="1" value="{{.ProgressValue}}"></progress>{{end}}
</div>
{{end}}
</div>
{{end}}
{{range .View.Failed}}
<div class="failed">{{.Name}} ({{.SourceID}}): unavailable</div>
{{end}}
</div>
</body>
</html>
`))

type viewDay struct {
	Label   string
	IsToday bool
	Events  []viewEvent
}

type viewEvent struct {
	model.NormalizedEvent
	TimeLabel     string
	ProgressValue float64
}

type viewData struct {
	View           engine.View
	Days           []viewDay
	HighlightToday bool
}

// handleWidgetView renders the HTML widget from the engine's last view.
func (s *Server) handleWidgetView(w http.ResponseWriter, _ *http.Request) {
	view := s.eng.View()

	days := make([]viewDay, 0, len(view.Buckets))
	for _, b := range view.Buckets {
		day := viewDay{
			Label:   s.cal.FormatDay(b.Day),
			IsToday: b.IsToday,
		}
		for _, ev := range b.Events {
			ve := viewEvent{NormalizedEvent: ev}
			if ev.AllDay {
				ve.TimeLabel = "all day"
			} else {
				ve.TimeLabel = s.cal.FormatTime(ev.Start) + " - " + s.cal.FormatTime(ev.End)
			}
			if ev.Progress != nil {
				ve.ProgressValue = *ev.Progress
			}
			day.Events = append(day.Events, ve)
		}
		days = append(days, day)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := widgetTemplate.Execute(w, viewData{
		View:           view,
		Days:           days,
		HighlightToday: s.cfg.HighlightToday,
	})
	if err != nil {
		appLog.Error("widget view render failed", err)
	}
}
