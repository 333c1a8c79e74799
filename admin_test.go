package main

import (
	"context"
	"net/http"
	"testing"
)

func adminLogin(t *testing.T, client *http.Client, baseURL string) {
	t.Helper()

	resp := postJSON(t, client, baseURL+"/admin-login", AdminLoginRequest{Password: "admin-secret"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin-login status = %d", resp.StatusCode)
	}
}

func TestAdminLoginWrongPassword(t *testing.T) {
	store := newTestStore(t)
	app := newTestApp(t, store)
	server := newTestServer(t, app)

	resp := postJSON(t, http.DefaultClient, server.URL+"/admin-login", AdminLoginRequest{Password: "faux"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestAdminLoginDisabledWithoutHash(t *testing.T) {
	store := newTestStore(t)
	app := newTestApp(t, store)
	app.adminHash = ""
	server := newTestServer(t, app)

	resp := postJSON(t, http.DefaultClient, server.URL+"/admin-login", AdminLoginRequest{Password: "admin-secret"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestAdminEndpointsRequireAdmin(t *testing.T) {
	store := newTestStore(t)
	app := newTestApp(t, store)
	server := newTestServer(t, app)
	client := newClientWithJar(t)

	// A logged-in player without the admin flag is still refused.
	loginAs(t, client, server.URL, "alice")

	for _, path := range []string{"/admin-reset-scores", "/admin/maintenance-on", "/admin/maintenance-off"} {
		resp := postJSON(t, client, server.URL+path, nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("%s: status = %d, want 403", path, resp.StatusCode)
		}
	}

	resp, err := client.Get(server.URL + "/admin/soon-list")
	if err != nil {
		t.Fatalf("soon-list: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("soon-list status = %d, want 403", resp.StatusCode)
	}
}

func TestAdminMaintenanceToggle(t *testing.T) {
	store := newTestStore(t)
	app := newTestApp(t, store)
	server := newTestServer(t, app)
	client := newClientWithJar(t)

	adminLogin(t, client, server.URL)

	resp := postJSON(t, client, server.URL+"/admin/maintenance-on", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("maintenance-on status = %d", resp.StatusCode)
	}
	enabled, err := store.MaintenanceEnabled(context.Background())
	if err != nil {
		t.Fatalf("read flag: %v", err)
	}
	if !enabled {
		t.Fatal("maintenance flag not set")
	}

	resp = postJSON(t, client, server.URL+"/admin/maintenance-off", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("maintenance-off status = %d", resp.StatusCode)
	}
	enabled, _ = store.MaintenanceEnabled(context.Background())
	if enabled {
		t.Fatal("maintenance flag not cleared")
	}
}

func TestAdminSoonPages(t *testing.T) {
	store := newTestStore(t)
	app := newTestApp(t, store)
	server := newTestServer(t, app)
	client := newClientWithJar(t)

	adminLogin(t, client, server.URL)

	// "/shop.html" and "shop" must land on the same row.
	resp := postJSON(t, client, server.URL+"/admin/soon", SoonPageRequest{Page: "/shop.html"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("soon status = %d", resp.StatusCode)
	}

	getResp, err := client.Get(server.URL + "/admin/soon-list")
	if err != nil {
		t.Fatalf("soon-list: %v", err)
	}
	var list SoonListResponse
	decodeBody(t, getResp, &list)
	if len(list.Pages) != 1 || list.Pages[0] != "shop" {
		t.Fatalf("soon list = %v, want [shop]", list.Pages)
	}

	resp = postJSON(t, client, server.URL+"/admin/unssoon", SoonPageRequest{Page: "shop"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unssoon status = %d", resp.StatusCode)
	}

	getResp, err = client.Get(server.URL + "/admin/soon-list")
	if err != nil {
		t.Fatalf("soon-list: %v", err)
	}
	decodeBody(t, getResp, &list)
	if len(list.Pages) != 0 {
		t.Fatalf("soon list after unssoon = %v, want empty", list.Pages)
	}
}

func TestAdminResetScores(t *testing.T) {
	store := newTestStore(t)

	for pseudo, score := range map[string]int64{"alice": 100, "bob": 200} {
		registerPlayer(t, store, pseudo)
		setScore(t, store, pseudo, score)
	}

	app := newTestApp(t, store)
	server := newTestServer(t, app)
	client := newClientWithJar(t)

	adminLogin(t, client, server.URL)

	resp := postJSON(t, client, server.URL+"/admin-reset-scores", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reset-scores status = %d", resp.StatusCode)
	}

	for _, pseudo := range []string{"alice", "bob"} {
		if score, _ := store.Score(context.Background(), pseudo); score != 0 {
			t.Fatalf("%s score = %d, want 0", pseudo, score)
		}
	}

	// The classement cache is rebuilt immediately.
	for _, entry := range app.leaderboard.Entries() {
		if entry.Score != 0 {
			t.Fatalf("cached entry %+v after reset", entry)
		}
	}
}

func TestAdminLoginUpgradesPlayerSession(t *testing.T) {
	store := newTestStore(t)
	app := newTestApp(t, store)
	server := newTestServer(t, app)
	client := newClientWithJar(t)

	loginAs(t, client, server.URL, "alice")
	adminLogin(t, client, server.URL)

	// The session keeps its player identity alongside the admin flag.
	var auth CheckAuthResponse
	resp, err := client.Get(server.URL + "/check-auth")
	if err != nil {
		t.Fatalf("check-auth: %v", err)
	}
	decodeBody(t, resp, &auth)
	if !auth.Authenticated || auth.Username != "alice" {
		t.Fatalf("check-auth after admin login = %+v", auth)
	}

	postResp := postJSON(t, client, server.URL+"/admin/maintenance-on", nil)
	postResp.Body.Close()
	if postResp.StatusCode != http.StatusOK {
		t.Fatalf("maintenance-on status = %d", postResp.StatusCode)
	}
}
