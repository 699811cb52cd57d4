package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// indexHandler serves the static dashboard shell. All data arrives through
// the JSON endpoints and the WebSocket feed; the shell is just a frame.
func (s *Server) indexHandler(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(indexHTML))
}

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>RoadWatch</title>
<style>
  body { font-family: -apple-system, "Segoe UI", sans-serif; margin: 0; background: #0f1419; color: #e6e6e6; }
  header { padding: 16px 24px; background: #1a2129; border-bottom: 1px solid #2a323c; }
  header h1 { margin: 0; font-size: 18px; }
  main { padding: 24px; max-width: 960px; margin: 0 auto; }
  #status { font-size: 13px; color: #8899a6; }
  .card { background: #1a2129; border: 1px solid #2a323c; border-radius: 8px; padding: 16px; margin-bottom: 16px; }
  .risk-critical { color: #ff4d4f; } .risk-very_high { color: #ff7a45; }
  .risk-high { color: #ffa940; } .risk-moderate, .risk-medium { color: #ffd666; }
  .risk-low { color: #73d13d; }
</style>
</head>
<body>
<header><h1>RoadWatch</h1><span id="status">connecting...</span></header>
<main>
  <div class="card" id="summary">Loading summary...</div>
  <div class="card" id="hotspots">Loading hotspots...</div>
</main>
<script>
(function () {
  var status = document.getElementById("status");

  function load(path, el, render) {
    fetch(path).then(function (r) {
      if (r.status === 401) { el.textContent = "Sign in to view data."; return null; }
      return r.json();
    }).then(function (body) {
      if (body) el.innerHTML = render(body);
    }).catch(function () { el.textContent = "Unavailable."; });
  }

  load("/api/summary", document.getElementById("summary"), function (b) {
    if (b.degraded || !b.summary) return "Summary unavailable.";
    var s = b.summary;
    return "<strong>" + s.total_casualties + "</strong> casualties (" + s.year_range + "), " +
      s.fatal_count + " fatal, " + s.serious_count + " serious.";
  });

  load("/api/hotspots?limit=10", document.getElementById("hotspots"), function (b) {
    if (!b.items || !b.items.length) return b.degraded ? "Hotspots unavailable." : "No hotspots.";
    return b.items.map(function (h) {
      return "<div><span class=\"risk-" + h.risk_category + "\">●</span> " +
        h.area_name + ": " + h.incident_count + " incidents</div>";
    }).join("");
  });

  var proto = location.protocol === "https:" ? "wss:" : "ws:";
  var ws = new WebSocket(proto + "//" + location.host + "/ws");
  ws.onopen = function () { status.textContent = "live"; };
  ws.onclose = function () { status.textContent = "disconnected"; };
  ws.onmessage = function (msg) {
    var ev = JSON.parse(msg.data);
    if (ev.type === "session_invalidated") { location.reload(); }
  };
})();
</script>
</body>
</html>
`
