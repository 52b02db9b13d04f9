package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/nightlight/internal/status"
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
	"reading": func(valid bool, v any) string {
		if !valid {
			return "n/a"
		}
		if f, ok := v.(float64); ok {
			return fmt.Sprintf("%.2f", f)
		}
		return fmt.Sprint(v)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Nightlight</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.ok { color: green; font-weight: bold; }
.degraded { color: orange; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Nightlight<span id="live-dot" class="live-dot pending" title="connecting"></span></h1>

<h2>Light</h2>
<table>
<tr><th>Mode</th><td id="mode">{{.Settings.Mode}}</td></tr>
<tr><th>Level</th><td id="level">{{.Light.Current}}</td></tr>
<tr><th>Target</th><td id="target">{{.Light.Target}}</td></tr>
<tr><th>Fade band</th><td>{{.Settings.FadeFloor}} to {{.Settings.FadeCeiling}}</td></tr>
<tr><th>Dwell</th><td>{{if .Light.DwellTimedOut}}timed out{{else if .Light.DwellArmed}}armed{{else}}idle{{end}}</td></tr>
</table>

<h2>Readings</h2>
<table>
<tr><th>Lux</th><td id="lux">{{reading .Readings.Lux.Valid .Readings.Lux.Value}}</td></tr>
<tr><th>Proximity</th><td id="proximity">{{reading .Readings.Proximity.Valid .Readings.Proximity.Value}}</td></tr>
<tr><th>Temperature</th><td id="temperature">{{reading .Readings.Temperature.Valid .Readings.Temperature.Value}}</td></tr>
<tr><th>Humidity</th><td id="humidity">{{reading .Readings.Humidity.Valid .Readings.Humidity.Value}}</td></tr>
<tr><th>Pressure</th><td id="pressure">{{reading .Readings.Pressure.Valid .Readings.Pressure.Value}}</td></tr>
</table>

<h2>Device</h2>
<table>
<tr><th>Boot</th><td class="{{if .BootStatus.Degraded}}degraded{{else}}ok{{end}}">{{if .Booted}}{{.BootStatus}}{{else}}BOOTING{{end}}</td></tr>
<tr><th>Push</th><td>{{if .Settings.PushEnabled}}every {{.Settings.PushIntervalTicks}} ticks{{else}}off{{end}}</td></tr>
<tr><th>Proximity offset</th><td>{{if .Settings.ProximityCalibrated}}{{.Settings.ProximityOffset}}{{else}}uncalibrated{{end}}</td></tr>
<tr><th>Task</th><td id="task">{{.Task}}</td></tr>
<tr><th>Ticks</th><td id="ticks">{{.Ticks}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Version</th><td>{{.Config.Version}}</td></tr>
<tr><th>Serial</th><td>{{.Config.Serial}}</td></tr>
<tr><th>Storage</th><td>{{.Config.Storage}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  var ids = ["mode", "level", "target", "lux", "proximity", "temperature", "humidity", "pressure", "task", "ticks"];
  var els = {};
  ids.forEach(function(id) { els[id] = document.getElementById(id); });

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  function show(id, v) {
    els[id].textContent = v === null || v === undefined ? "n/a" : v;
  }

  function connect() {
    var ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
    ws.onopen = function() { setDot("ok", "live"); };
    ws.onclose = function() {
      setDot("err", "offline");
      setTimeout(connect, 5000);
    };
    ws.onmessage = function(ev) {
      try {
        var s = JSON.parse(ev.data).status;
        show("mode", s.light.mode);
        show("level", s.light.level);
        show("target", s.light.target);
        show("lux", s.readings.lux);
        show("proximity", s.readings.proximity);
        show("temperature", s.readings.temperature === null ? null : s.readings.temperature.toFixed(2));
        show("humidity", s.readings.humidity === null ? null : s.readings.humidity.toFixed(2));
        show("pressure", s.readings.pressure);
        show("task", s.task);
        show("ticks", s.ticks);
      } catch (e) {}
    };
  }
  connect();
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
