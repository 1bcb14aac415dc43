package ecourts

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"ecourts-backend/lib/retry"

	"github.com/stretchr/testify/require"
)

// stubPortal emulates the portal's conversation protocol: a cookie per
// session, an app_token rotated on every form submission, json
// envelopes wrapping html fragments, and a captcha gate in front of
// cause list submission.
type stubPortal struct {
	t *testing.T

	mu         sync.Mutex
	sessions   map[string]*stubSession
	nextID     int
	captchaSeq int

	captchaAnswer string
	// when set, fillDistrict fails this many times with a 500
	failDistricts int
	// when set, every step reports a stale session
	expireSessions bool
	// when set, fillDistrict omits the dist_list fragment
	omitDistList bool
	// override for the cnr search response body
	caseSearchBody string

	// records whether any request arrived with another session's token
	crossContaminated bool
	stepCounts        map[string]int
	// selprevdays from the most recent cause list submission
	lastPrevDays string
}

type stubSession struct {
	token    string
	tokenSeq int
}

func newStubPortal(t *testing.T) *stubPortal {
	return &stubPortal{
		t:             t,
		sessions:      map[string]*stubSession{},
		captchaAnswer: "xk42p",
		stepCounts:    map[string]int{},
	}
}

func (p *stubPortal) rotate(cookie string) string {
	sess := p.sessions[cookie]
	sess.tokenSeq++
	sess.token = fmt.Sprintf("tok-%s-%d", cookie, sess.tokenSeq)
	return sess.token
}

func (p *stubPortal) session(w http.ResponseWriter, r *http.Request) (string, *stubSession, bool) {
	cookie, err := r.Cookie("ECOURTS_SESS")
	if err != nil {
		http.Error(w, "no session cookie", http.StatusBadRequest)
		return "", nil, false
	}
	sess, ok := p.sessions[cookie.Value]
	if !ok {
		http.Error(w, "unknown session", http.StatusBadRequest)
		return "", nil, false
	}
	return cookie.Value, sess, true
}

// checkToken verifies the request carries the token most recently
// issued to its own session, the invariant the engine must uphold.
func (p *stubPortal) checkToken(w http.ResponseWriter, r *http.Request, sess *stubSession) bool {
	got := r.PostFormValue("app_token")
	if got != sess.token {
		p.crossContaminated = true
		p.t.Errorf("app_token mismatch: got %q want %q", got, sess.token)
		http.Error(w, "token mismatch", http.StatusConflict)
		return false
	}
	return true
}

func (p *stubPortal) writeEnvelope(w http.ResponseWriter, payload map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(payload)
	require.NoError(p.t, err)
}

func (p *stubPortal) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if r.URL.Path == "/" && r.Method == http.MethodGet {
		p.serveInit(w, r)
		return
	}

	switch r.URL.Path {
	case "/securimage/securimage_show.php":
		w.Header().Set("Content-Type", "image/png")
		fmt.Fprintf(w, "png-bytes-%s", r.URL.Query().Get("sid"))
		return
	case "/ajax/search_case_cnr.php", "/ajax/search_case_details.php":
		_, sess, ok := p.session(w, r)
		if !ok || !p.checkToken(w, r, sess) {
			return
		}
		p.rotate(cookieValue(r))
		body := p.caseSearchBody
		if body == "" {
			body = "<p>Record Not Found</p>"
		}
		fmt.Fprint(w, body)
		return
	case "/ajax/download_cause_list_pdf.php":
		_, sess, ok := p.session(w, r)
		if !ok || !p.checkToken(w, r, sess) {
			return
		}
		p.rotate(cookieValue(r))
		w.Header().Set("Content-Type", "application/pdf")
		fmt.Fprint(w, "%PDF-1.4 stub cause list")
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	step := r.URL.Query().Get("p")
	p.stepCounts[step]++

	cookie, sess, ok := p.session(w, r)
	if !ok {
		return
	}
	if p.expireSessions {
		p.writeEnvelope(w, map[string]any{
			"errormsg": "Session Expired. Please reload the page.",
		})
		return
	}
	if !p.checkToken(w, r, sess) {
		return
	}

	switch step {
	case "casestatus/fillDistrict":
		if p.failDistricts > 0 {
			p.failDistricts--
			http.Error(w, "bad gateway", http.StatusBadGateway)
			return
		}
		payload := map[string]any{"app_token": p.rotate(cookie)}
		if !p.omitDistList {
			payload["dist_list"] = `` +
				`<option value="0">Select District</option>` +
				`<option value="9">Central Delhi</option>` +
				`<option value="23">South East Delhi</option>`
		}
		p.writeEnvelope(w, payload)

	case "casestatus/fillcomplex":
		p.writeEnvelope(w, map[string]any{
			"app_token": p.rotate(cookie),
			"complex_list": `` +
				`<option value="0">Select Court Complex</option>` +
				`<option value="1@DLND01,DLND02@Y">Tis Hazari Court Complex</option>` +
				`<option value="2@DLSE01@N">Saket Court Complex</option>`,
		})

	case "courtorder/fillCourtNumber":
		p.writeEnvelope(w, map[string]any{
			"app_token":        p.rotate(cookie),
			"courtnumber_list": courtOptionsFor(r.PostFormValue("est_code")),
		})

	case "casestatus/getCaptcha":
		p.captchaSeq++
		p.writeEnvelope(w, map[string]any{
			"app_token": p.rotate(cookie),
			"div_captcha": fmt.Sprintf(
				`<div><img id="captcha_image" src="/securimage/securimage_show.php?sid=%d"/>`+
					`<a class="captcha_play_button" href="/securimage/securimage_play.php?sid=%d">Play</a></div>`,
				p.captchaSeq, p.captchaSeq,
			),
		})

	case "cause_list/submitCauseList":
		token := p.rotate(cookie)
		p.lastPrevDays = r.PostFormValue("selprevdays")
		if r.PostFormValue("cause_list_captcha_code") != p.captchaAnswer {
			p.writeEnvelope(w, map[string]any{
				"app_token": token,
				"status":    0,
				"errormsg":  "<p>Invalid Captcha Code</p>",
			})
			return
		}
		if r.PostFormValue("causelist_date") == "25-12-2025" {
			// portal holiday behaviour: rejected without a captcha error
			p.writeEnvelope(w, map[string]any{
				"app_token": token,
				"status":    0,
				"errormsg":  "<p>Cause list is not available for the selected date.</p>",
			})
			return
		}
		p.writeEnvelope(w, map[string]any{
			"app_token": token,
			"status":    1,
			"case_data": `<table>
				<tr><th>Sr No</th><th>Case Number</th><th>Party Name</th><th>Advocate</th><th>Purpose</th></tr>
				<tr><td>1</td><td>CS/100/2025</td><td>A vs B</td><td>Adv. Rao</td><td>Hearing</td></tr>
				<tr><td>2</td><td>CS/200/2025</td><td>C vs D</td><td>Adv. Mehta</td><td>Evidence</td></tr>
				<tr><td>3</td><td>CS/300/2025</td><td>E vs F</td><td>Adv. Khan</td><td>Orders</td></tr>
			</table>`,
			"div_captcha": `<div><img id="captcha_image" src="/securimage/securimage_show.php?sid=next"/></div>`,
		})

	default:
		http.NotFound(w, r)
	}
}

func (p *stubPortal) serveInit(w http.ResponseWriter, r *http.Request) {
	var cookie string
	if c, err := r.Cookie("ECOURTS_SESS"); err == nil {
		if _, ok := p.sessions[c.Value]; ok {
			cookie = c.Value
		}
	}
	if cookie == "" {
		p.nextID++
		cookie = fmt.Sprintf("s%d", p.nextID)
		p.sessions[cookie] = &stubSession{}
		p.rotate(cookie)
		http.SetCookie(w, &http.Cookie{Name: "ECOURTS_SESS", Value: cookie, Path: "/"})
	}

	sess := p.sessions[cookie]
	fmt.Fprintf(w, `<html><body>
		<input type="hidden" id="app_token" value="%s"/>
		<select id="sess_state_code">
			<option value="0">Select State</option>
			<option value="26">Delhi</option>
			<option value="1">Maharashtra</option>
		</select>
	</body></html>`, sess.token)
}

func cookieValue(r *http.Request) string {
	c, err := r.Cookie("ECOURTS_SESS")
	if err != nil {
		return ""
	}
	return c.Value
}

func courtOptionsFor(estCode string) string {
	switch estCode {
	case "DLND01":
		return `<option value="D">Select Court</option>` +
			`<option value="1$DLND01">Court No 1, Tis Hazari</option>` +
			`<option value="2$DLND01">Court No 2, Tis Hazari</option>`
	case "DLND02":
		return `<option value="D">Select Court</option>` +
			`<option value="2$DLND01">Court No 2, Tis Hazari</option>` +
			`<option value="3$DLND02">Court No 3, Tis Hazari</option>`
	default:
		return `<option value="D">Select Court</option>` +
			`<option value="1$DLSE01">Court No 1, Saket</option>`
	}
}

// test clients retry fast and only as often as each test wants
func newTestClient(t *testing.T, portal *stubPortal, attempts int) *Client {
	server := httptest.NewServer(portal)
	t.Cleanup(server.Close)

	client, err := NewClient(ClientOptions{
		BaseUrl: server.URL,
		Timeout: time.Second * 5,
		Retry: retry.Policy{
			MaxAttempts: attempts,
			BaseDelay:   time.Millisecond,
			MaxDelay:    time.Millisecond * 4,
			Retryable:   IsPortalUnavailable,
		},
	})
	require.NoError(t, err)
	return client
}
