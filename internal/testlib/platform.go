// Package testlib holds test helpers shared by the package tests: a logger
// bound to testing.TB and an in-process fake of the Supabase endpoints the
// migration uses.
package testlib

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// FakePlatform implements PostgREST inserts/counts and the GoTrue admin
// create/delete user calls in memory
type FakePlatform struct {
	Server     *httptest.Server
	ServiceKey string

	mu          sync.Mutex
	tables      map[string][]map[string]interface{}
	nextID      map[string]int64
	users       map[string]map[string]interface{}
	deleted     []string
	failInsert  map[string]func(map[string]interface{}) bool
	failCreate  map[string]bool
	failDelete  bool
	insertCalls int
}

// NewFakePlatform starts the fake server; call Close when done
func NewFakePlatform(serviceKey string) *FakePlatform {
	p := &FakePlatform{
		ServiceKey: serviceKey,
		tables:     make(map[string][]map[string]interface{}),
		nextID:     make(map[string]int64),
		users:      make(map[string]map[string]interface{}),
		failInsert: make(map[string]func(map[string]interface{}) bool),
		failCreate: make(map[string]bool),
	}

	router := mux.NewRouter()
	router.Use(p.authorize)
	router.HandleFunc("/rest/v1/{table}", p.handleSelect).Methods(http.MethodGet)
	router.HandleFunc("/rest/v1/{table}", p.handleCount).Methods(http.MethodHead)
	router.HandleFunc("/rest/v1/{table}", p.handleInsert).Methods(http.MethodPost)
	router.HandleFunc("/auth/v1/admin/users", p.handleCreateUser).Methods(http.MethodPost)
	router.HandleFunc("/auth/v1/admin/users/{id}", p.handleDeleteUser).Methods(http.MethodDelete)

	p.Server = httptest.NewServer(router)
	return p
}

// URL is the base URL to hand to supabase.NewClient
func (p *FakePlatform) URL() string {
	return p.Server.URL
}

func (p *FakePlatform) Close() {
	p.Server.Close()
}

// FailInsert makes inserts into table fail when match returns true
func (p *FakePlatform) FailInsert(table string, match func(record map[string]interface{}) bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failInsert[table] = match
}

// FailCreateUser makes identity creation fail for email
func (p *FakePlatform) FailCreateUser(email string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failCreate[email] = true
}

// FailDeleteUser makes every identity deletion fail
func (p *FakePlatform) FailDeleteUser() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failDelete = true
}

// Rows returns a copy of the rows stored in table
func (p *FakePlatform) Rows(table string) []map[string]interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]map[string]interface{}(nil), p.tables[table]...)
}

// Users returns the live auth identities keyed by id
func (p *FakePlatform) Users() map[string]map[string]interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	users := make(map[string]map[string]interface{}, len(p.users))
	for id, user := range p.users {
		users[id] = user
	}
	return users
}

// DeletedUsers returns the ids of identities removed through the admin API
func (p *FakePlatform) DeletedUsers() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.deleted...)
}

// InsertCalls counts every insert request, failed ones included
func (p *FakePlatform) InsertCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.insertCalls
}

func (p *FakePlatform) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") != p.ServiceKey || r.Header.Get("Authorization") != "Bearer "+p.ServiceKey {
			writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"message": "Invalid API key"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (p *FakePlatform) handleSelect(w http.ResponseWriter, r *http.Request) {
	table := mux.Vars(r)["table"]

	p.mu.Lock()
	rows := p.tables[table]
	var out []map[string]interface{}
	if len(rows) > 0 {
		out = []map[string]interface{}{{"id": rows[0]["id"]}}
	} else {
		out = []map[string]interface{}{}
	}
	p.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (p *FakePlatform) handleCount(w http.ResponseWriter, r *http.Request) {
	table := mux.Vars(r)["table"]

	p.mu.Lock()
	count := len(p.tables[table])
	p.mu.Unlock()

	if count == 0 {
		w.Header().Set("Content-Range", "*/0")
	} else {
		w.Header().Set("Content-Range", fmt.Sprintf("0-%d/%d", count-1, count))
	}
	w.WriteHeader(http.StatusOK)
}

func (p *FakePlatform) handleInsert(w http.ResponseWriter, r *http.Request) {
	table := mux.Vars(r)["table"]

	var record map[string]interface{}
	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber()
	if err := decoder.Decode(&record); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"code": "PGRST102", "message": err.Error()})
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.insertCalls++

	if match, ok := p.failInsert[table]; ok && match(record) {
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"code":    "23505",
			"message": "duplicate key value violates unique constraint",
			"details": fmt.Sprintf("insert into %s rejected", table),
		})
		return
	}

	if _, ok := record["id"]; !ok {
		p.nextID[table]++
		record["id"] = json.Number(fmt.Sprintf("%d", p.nextID[table]))
	}
	p.tables[table] = append(p.tables[table], record)

	if r.Header.Get("Prefer") == "return=representation" {
		writeJSON(w, http.StatusCreated, []map[string]interface{}{record})
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (p *FakePlatform) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var attrs map[string]interface{}
	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber()
	if err := decoder.Decode(&attrs); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"code": 400, "msg": err.Error()})
		return
	}
	email, _ := attrs["email"].(string)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failCreate[email] {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"code": 500, "msg": "Database error creating new user"})
		return
	}
	for _, user := range p.users {
		if user["email"] == email {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
				"code":       422,
				"error_code": "email_exists",
				"msg":        "A user with this email address has already been registered",
			})
			return
		}
	}

	user := map[string]interface{}{
		"id":            uuid.New().String(),
		"email":         email,
		"password":      attrs["password"],
		"email_confirm": attrs["email_confirm"],
		"user_metadata": attrs["user_metadata"],
	}
	p.users[user["id"].(string)] = user

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":            user["id"],
		"email":         email,
		"user_metadata": attrs["user_metadata"],
	})
}

func (p *FakePlatform) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failDelete {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"code": 500, "msg": "Database error deleting user"})
		return
	}
	if _, ok := p.users[id]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"code": 404, "error_code": "user_not_found", "msg": "User not found"})
		return
	}
	delete(p.users, id)
	p.deleted = append(p.deleted, id)
	writeJSON(w, http.StatusOK, map[string]interface{}{})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
