package reload

import (
	"bytes"
	"context"

	"github.com/a-h/templ"
)

// Paths served by the bridge itself. Everything else goes to the app.
const (
	SocketPath = "/__forge/ws"
	ClientPath = "/__forge/client.js"
)

const clientScript = `(function () {
  var url = (location.protocol === "https:" ? "wss://" : "ws://") + location.host + "` + SocketPath + `";
  var retry = 0;

  function inject(target) {
    var links = document.querySelectorAll('link[rel="stylesheet"]');
    var matched = false;
    for (var i = 0; i < links.length; i++) {
      var href = links[i].getAttribute("href") || "";
      var path = href.split("?")[0];
      if (!target || path === target || path.slice(-target.length) === target) {
        links[i].setAttribute("href", path + "?forge=" + Date.now());
        matched = true;
      }
    }
    if (!matched) location.reload();
  }

  function notify(text) {
    var el = document.createElement("div");
    el.textContent = text;
    el.style.cssText = "position:fixed;top:0;right:0;z-index:9999;padding:6px 12px;" +
      "background:#1b2032;color:#fff;font:13px sans-serif;border-bottom-left-radius:4px";
    document.body.appendChild(el);
    setTimeout(function () { el.remove(); }, 2000);
  }

  function connect() {
    var ws = new WebSocket(url);
    ws.onopen = function () { retry = 0; };
    ws.onmessage = function (ev) {
      var msg = JSON.parse(ev.data);
      if (msg.type === "reload") location.reload();
      else if (msg.type === "inject") inject(msg.target);
      else if (msg.type === "notify") notify(msg.content);
    };
    ws.onclose = function () {
      retry = Math.min(retry + 1, 10);
      setTimeout(connect, retry * 500);
    };
  }

  connect();
})();
`

// ClientScript returns the browser side of the bridge.
func ClientScript() string {
	return clientScript
}

// ScriptTag renders the tag loading the client script.
func ScriptTag() templ.Component {
	return clientTag(ClientPath)
}

// InjectScript inserts the client script tag before the closing body tag,
// or appends it when the document has none. Documents that already load the
// script are returned unchanged. A nonce set with templ.WithNonce is carried
// onto the tag.
func InjectScript(ctx context.Context, doc []byte) ([]byte, error) {
	if bytes.Contains(doc, []byte(ClientPath)) {
		return doc, nil
	}

	var tag bytes.Buffer
	if err := ScriptTag().Render(ctx, &tag); err != nil {
		return nil, err
	}

	i := bytes.LastIndex(bytes.ToLower(doc), []byte("</body>"))
	if i < 0 {
		return append(doc, tag.Bytes()...), nil
	}

	out := make([]byte, 0, len(doc)+tag.Len())
	out = append(out, doc[:i]...)
	out = append(out, tag.Bytes()...)
	out = append(out, doc[i:]...)
	return out, nil
}
