package server

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/a-h/templ"

	"github.com/conneroisu/chatmark/internal/alert"
	"github.com/conneroisu/chatmark/internal/chat"
)

type pageData struct {
	ActivityID  string
	Identity    identity
	Messages    []chat.OutboundMessage // oldest first
	Alerts      []alert.Alert
	Development bool
}

// transcriptPage is the full chat page for one activity.
func transcriptPage(p pageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		activity := templ.EscapeString(p.ActivityID)

		if _, err := fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Chat · %s</title>
`, activity); err != nil {
			return err
		}
		if p.Development {
			if _, err := io.WriteString(w, `<script src="https://cdn.tailwindcss.com"></script>
`); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, `</head>
<body class="bg-base-200">
<main id="chat" class="mx-auto max-w-3xl p-4" data-activity="%s" data-user="%s">
<h1 class="text-xl font-bold mb-4">%s</h1>
<div id="alerts" class="toast toast-top toast-end">
`, activity, templ.EscapeString(p.Identity.ID), activity); err != nil {
			return err
		}

		for _, a := range p.Alerts {
			if err := alertItem(a).Render(ctx, w); err != nil {
				return err
			}
		}

		if _, err := io.WriteString(w, `</div>
<ol id="messages" class="space-y-2">
`); err != nil {
			return err
		}

		for _, m := range p.Messages {
			if err := messageItem(m).Render(ctx, w); err != nil {
				return err
			}
		}

		_, err := io.WriteString(w, `</ol>
<form id="composer" class="mt-4 flex flex-col gap-2">
<textarea name="message" class="textarea textarea-bordered" rows="3" placeholder="Write a message (markdown supported)"></textarea>
<input name="images" class="input input-bordered" placeholder="Image URLs, one per line or comma separated">
<button type="submit" class="btn btn-primary">Send</button>
</form>
</main>
<script src="/static/chat.js"></script>
</body>
</html>
`)
		return err
	})
}

// messageItem renders one transcript entry. HTML has already been through
// the sanitizer.
func messageItem(m chat.OutboundMessage) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, `<li class="chat chat-start" id="msg-%s" data-user="%s">
<div class="chat-header"><span class="font-bold">%s</span> <time datetime="%s">%s</time></div>
<div class="chat-bubble">`,
			templ.EscapeString(m.ID),
			templ.EscapeString(m.UserID),
			templ.EscapeString(m.Name),
			m.Timestamp.UTC().Format(time.RFC3339),
			m.Timestamp.Format("15:04")); err != nil {
			return err
		}
		if err := templ.Raw(m.HTML).Render(ctx, w); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "</div>\n"); err != nil {
			return err
		}

		if len(m.Images) > 0 {
			if _, err := io.WriteString(w, `<ul class="chat-footer attachments">`); err != nil {
				return err
			}
			for i, img := range m.Images {
				if _, err := fmt.Fprintf(w, `<li><a href="%s" target="_blank" rel="noopener noreferrer nofollow">attachment %d</a></li>`,
					templ.EscapeString(img), i+1); err != nil {
					return err
				}
			}
			if _, err := io.WriteString(w, "</ul>\n"); err != nil {
				return err
			}
		}

		_, err := io.WriteString(w, "</li>\n")
		return err
	})
}

func alertItem(a alert.Alert) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<div role="alert" class="alert alert-%s" data-alert-id="%s"><span><strong>%s:</strong> %s</span><button type="button" class="btn btn-ghost btn-xs" data-dismiss="%s" aria-label="Dismiss">✕</button></div>
`,
			templ.EscapeString(string(a.Level)),
			templ.EscapeString(a.ID),
			templ.EscapeString(a.Label),
			templ.EscapeString(a.Content),
			templ.EscapeString(a.ID))
		return err
	})
}

const chatScript = `(function () {
  "use strict";
  var root = document.getElementById("chat");
  if (!root) return;
  var activity = root.dataset.activity;
  var messages = document.getElementById("messages");
  var alerts = document.getElementById("alerts");
  var form = document.getElementById("composer");
  var socket;

  function text(tag, cls, value) {
    var el = document.createElement(tag);
    if (cls) el.className = cls;
    el.textContent = value;
    return el;
  }

  function appendMessage(m) {
    var li = document.createElement("li");
    li.className = "chat chat-start";
    li.id = "msg-" + m.id;
    li.dataset.user = m.user_id;
    var header = document.createElement("div");
    header.className = "chat-header";
    header.appendChild(text("span", "font-bold", m.name));
    header.appendChild(document.createTextNode(" "));
    var when = new Date(m.timestamp);
    var time = text("time", "", when.toTimeString().slice(0, 5));
    time.dateTime = m.timestamp;
    header.appendChild(time);
    li.appendChild(header);
    var bubble = document.createElement("div");
    bubble.className = "chat-bubble";
    bubble.innerHTML = m.html;
    li.appendChild(bubble);
    if (m.images && m.images.length) {
      var ul = document.createElement("ul");
      ul.className = "chat-footer attachments";
      m.images.forEach(function (src, i) {
        var a = text("a", "", "attachment " + (i + 1));
        a.href = src;
        a.target = "_blank";
        a.rel = "noopener noreferrer nofollow";
        var item = document.createElement("li");
        item.appendChild(a);
        ul.appendChild(item);
      });
      li.appendChild(ul);
    }
    messages.appendChild(li);
    li.scrollIntoView({ block: "end" });
  }

  function showAlert(a) {
    var existing = alerts.querySelector('[data-alert-id="' + a.id + '"]');
    if (!a.visible) {
      if (existing) existing.remove();
      return;
    }
    if (existing) return;
    var div = document.createElement("div");
    div.setAttribute("role", "alert");
    div.className = "alert alert-" + a.level;
    div.dataset.alertId = a.id;
    var span = document.createElement("span");
    span.appendChild(text("strong", "", a.label + ":"));
    span.appendChild(document.createTextNode(" " + a.content));
    div.appendChild(span);
    var btn = text("button", "btn btn-ghost btn-xs", "✕");
    btn.type = "button";
    btn.dataset.dismiss = a.id;
    div.appendChild(btn);
    alerts.appendChild(div);
  }

  alerts.addEventListener("click", function (e) {
    var id = e.target && e.target.dataset && e.target.dataset.dismiss;
    if (!id) return;
    fetch("/api/alerts/" + encodeURIComponent(id) + "/dismiss", { method: "POST" });
    var el = alerts.querySelector('[data-alert-id="' + id + '"]');
    if (el) el.remove();
  });

  function connect() {
    var scheme = location.protocol === "https:" ? "wss://" : "ws://";
    socket = new WebSocket(scheme + location.host + "/ws/chat/" + encodeURIComponent(activity));
    socket.onmessage = function (e) {
      var frame;
      try { frame = JSON.parse(e.data); } catch (err) { return; }
      if (frame.type === "message") appendMessage(frame);
      else if (frame.type === "alert") showAlert(frame.alert);
    };
    socket.onclose = function () { setTimeout(connect, 2000); };
  }

  form.addEventListener("submit", function (e) {
    e.preventDefault();
    if (!socket || socket.readyState !== WebSocket.OPEN) return;
    var images = form.images.value.split(/[\s,]+/).filter(Boolean);
    socket.send(JSON.stringify({ message: form.message.value, images: images }));
    form.message.value = "";
    form.images.value = "";
  });

  connect();
})();
`
