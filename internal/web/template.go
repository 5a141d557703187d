package web

import (
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/sweeney/mcp23017-sensor/internal/status"
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
	"stateClass": func(s fmt.Stringer) string {
		return strings.ToLower(s.String())
	},
	"hex": func(n int) string {
		return fmt.Sprintf("0x%02x", n)
	},
	"ts": func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return t.UTC().Format("2006-01-02T15:04:05Z")
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="30">
<title>MCP23017 Sensor</title>
<style>
body { font-family: monospace; max-width: 760px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.error { color: red; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>MCP23017 Sensor</h1>

<h2>Sensors</h2>
{{if .Sensors}}<table>
<tr><th>Pin</th><th>Name</th><th>State</th><th>Last poll</th><th>On/Off</th><th>Errors</th></tr>
{{range .Sensors}}<tr id="sensor-{{.ID}}">
<td>{{.Pin}}</td>
<td><a href="/sensors/{{.ID}}">{{.Name}}</a></td>
<td class="{{stateClass .State}}" data-field="state">{{.State}}</td>
<td>{{ts .LastPoll}}{{if .LastError}} <span class="error" title="{{.LastError}}">!</span>{{end}}</td>
<td data-field="counts">{{.Counts.On}}/{{.Counts.Off}}</td>
<td data-field="errors">{{.Counts.ReadErrors}}</td>
</tr>
{{end}}</table>{{else}}<p>No sensors configured.</p>{{end}}

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}none{{end}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Platform</th><td>{{.Config.Platform}}{{if eq .Config.Platform "mcp23017"}} @ {{hex .Config.I2CAddress}}{{end}}</td></tr>
<tr><th>Pull</th><td>{{.Config.PullMode}}</td></tr>
<tr><th>Invert</th><td>{{if .Config.InvertLogic}}yes{{else}}no{{end}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">Metrics</a></p>
{{if .Live}}<script>
(function() {
  var ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
  ws.onmessage = function(ev) {
    var s = JSON.parse(ev.data);
    var row = document.getElementById("sensor-" + s.id);
    if (!row) return;
    var st = row.querySelector("[data-field=state]");
    st.textContent = s.state;
    st.className = s.state.toLowerCase();
    row.querySelector("[data-field=counts]").textContent = s.on_count + "/" + s.off_count;
    row.querySelector("[data-field=errors]").textContent = s.read_errors;
  };
})();
</script>{{end}}
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot, live bool) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
		Live   bool
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Live:     live,
	}
	return indexTmpl.Execute(w, data)
}
