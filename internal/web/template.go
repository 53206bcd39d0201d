package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/step-sensor/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"connected": func(ok bool) string {
		if ok {
			return "connected"
		}
		return "disconnected"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Step Sensor</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.steps { font-size: 1.6em; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Step Sensor<span id="live-dot" class="live-dot pending" title="connecting"></span></h1>

<h2>Steps</h2>
<table>
<tr><th>User</th><td>{{.Config.UserID}}</td></tr>
<tr><th>Steps</th><td id="steps" class="steps">{{.Counts.Steps}}</td></tr>
<tr><th>Last step</th><td id="last-step">{{if .HasStep}}{{.LastStep.Timestamp}}{{else}}none{{end}}</td></tr>
<tr><th>Phase</th><td>{{.Phase}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>Source</th><td>{{.Config.Source}}</td></tr>
{{if .Config.Collector}}<tr><th>Collector</th><td class="{{connected .CollectorConnected}}">{{connected .CollectorConnected}} ({{.Config.Collector}})</td></tr>{{end}}
{{if .Config.Serial}}<tr><th>Serial</th><td>{{.Config.Serial}}</td></tr>{{end}}
{{if .Config.Broker}}<tr><th>MQTT</th><td class="{{connected .MQTTConnected}}">{{connected .MQTTConnected}} ({{.Config.Broker}})</td></tr>{{end}}
</table>

<h2>Counters</h2>
<table>
<tr><th>Samples</th><td>{{.Counts.Samples}}</td></tr>
<tr><th>Decisions</th><td>{{.Counts.Decisions}}</td></tr>
<tr><th>Plateau resets</th><td>{{.Counts.PlateauResets}}</td></tr>
<tr><th>Lines accepted</th><td>{{.Ingest.Accepted}}</td></tr>
<tr><th>Lines ignored</th><td>{{.Ingest.Ignored}}</td></tr>
<tr><th>Lines malformed</th><td>{{.Ingest.Malformed}}</td></tr>
<tr><th>Queue</th><td>{{.QueueDepth}} / {{.Config.QueueSize}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
{{if .InstanceID}}<tr><th>Instance</th><td>{{.InstanceID}}</td></tr>{{end}}
</table>

<p><a href="/index.json">JSON</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  var stepsEl = document.getElementById("steps");
  var lastEl = document.getElementById("last-step");

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  function connect() {
    var proto = location.protocol === "https:" ? "wss:" : "ws:";
    var ws = new WebSocket(proto + "//" + location.host + "/ws");
    ws.onopen = function() { setDot("ok", "live"); };
    ws.onclose = function() {
      setDot("err", "offline");
      setTimeout(connect, 5000);
    };
    ws.onmessage = function(e) {
      try {
        var msg = JSON.parse(e.data);
        if (msg.type === "step") {
          stepsEl.textContent = msg.payload.count;
          lastEl.textContent = msg.payload.timestamp;
        }
      } catch (err) {}
    };
  }
  connect();
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
