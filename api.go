package main

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"hashprng/internal/config"
	"hashprng/internal/entropy"
	"hashprng/internal/stats"
	"hashprng/internal/store"
	"hashprng/prng"
	"hashprng/prng/hashes"
)

// maxUpload bounds request bodies for seeds, entropy and stats uploads.
const maxUpload = 32 << 20

var (
	errBadUpload    = errors.New("bad upload")
	errUnknownSuite = errors.New("unknown stats suite")
)

type server struct {
	cfg       config.Config
	log       zerolog.Logger
	reg       *registry
	store     *store.Store
	collector *entropy.Collector
}

func newServer(cfg config.Config, log zerolog.Logger, st *store.Store) (*server, error) {
	s := &server{
		cfg:   cfg,
		log:   log,
		reg:   newRegistry(st),
		store: st,
		collector: &entropy.Collector{
			URLs:         cfg.EntropyURLs,
			Timeout:      cfg.EntropyTimeout,
			JitterRounds: cfg.JitterRounds,
		},
	}
	n, err := s.reg.load()
	if err != nil {
		return nil, err
	}
	if n > 0 {
		log.Info().Int("pools", n).Str("store", st.Path()).Msg("restored pools")
	}
	return s, nil
}

func (s *server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/hashes", s.hashesHandler)
	mux.HandleFunc("/pools", s.poolsHandler)
	mux.HandleFunc("/pools/", s.poolRouter)
	mux.HandleFunc("/stats", s.uploadStatsHandler)
	mux.HandleFunc("/journal", s.journalHandler)
	mux.HandleFunc("/journal/verify", s.verifyHandler)
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	})
	return c.Handler(s.logRequests(mux))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

// ======= helpers =======

func atoi(q string, def int) int {
	if q == "" {
		return def
	}
	v, err := strconv.Atoi(q)
	if err != nil {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errPoolExists):
		return http.StatusConflict
	case errors.Is(err, prng.ErrEntropyLength),
		errors.Is(err, prng.ErrStateLength),
		errors.Is(err, hashes.ErrUnknownHash),
		errors.Is(err, hashes.ErrCounterWidth),
		errors.Is(err, hashes.ErrPoolSize),
		errors.Is(err, errPoolName),
		errors.Is(err, errCounterMax),
		errors.Is(err, entropy.ErrUnknownSource),
		errors.Is(err, stats.ErrNoBits),
		errors.Is(err, stats.ErrBadMode),
		errors.Is(err, errBadUpload),
		errors.Is(err, errUnknownSuite):
		return http.StatusBadRequest
	case errors.Is(err, entropy.ErrNoEntropy):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	http.Error(w, err.Error(), code)
}

// inputBytes reads a hex query parameter, or the raw body when it is absent.
func inputBytes(r *http.Request) ([]byte, error) {
	if h := r.URL.Query().Get("hex"); h != "" {
		b, err := hex.DecodeString(h)
		if err != nil {
			return nil, fmt.Errorf("decode hex: %w", err)
		}
		return b, nil
	}
	b, err := io.ReadAll(io.LimitReader(r.Body, maxUpload))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return b, nil
}

// bitCount parses the n query parameter, clamped to the configured maximum.
func (s *server) bitCount(r *http.Request, def int) (int, error) {
	n := atoi(r.URL.Query().Get("n"), def)
	if n <= 0 {
		n = def
	}
	if n > s.cfg.MaxBits {
		return 0, fmt.Errorf("n=%d exceeds the limit of %d bits", n, s.cfg.MaxBits)
	}
	return n, nil
}

// ======= handlers =======

func (s *server) hashesHandler(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	out := make([]hashes.Info, 0)
	for _, name := range hashes.Names() {
		info, _ := hashes.Lookup(name)
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, out)
}

// GET /pools lists pools, POST /pools?name=&hash=&counter=&pool= creates one.
func (s *server) poolsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		list := make([]poolSummary, 0)
		for _, p := range s.reg.list() {
			list = append(list, summarize(p.cfg, p.src.State().Counter))
		}
		writeJSON(w, http.StatusOK, list)
	case http.MethodPost:
		q := r.URL.Query()
		cfg := store.PoolConfig{
			Name:        q.Get("name"),
			Hash:        strings.ToLower(q.Get("hash")),
			CounterBits: atoi(q.Get("counter"), s.cfg.CounterBits),
			PoolBytes:   atoi(q.Get("pool"), s.cfg.PoolBytes),
		}
		if cfg.Hash == "" {
			cfg.Hash = s.cfg.Hash
		}
		p, err := s.reg.create(cfg)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		s.log.Info().Str("pool", cfg.Name).Str("hash", cfg.Hash).
			Int("counter_bits", cfg.CounterBits).Int("pool_bytes", cfg.PoolBytes).
			Msg("created pool")
		writeJSON(w, http.StatusCreated, summarize(p.cfg, 0))
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// /pools/{name}/state  /seed  /entropy  /restore  /rand  /bytes  /stats
func (s *server) poolRouter(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/pools/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "missing pool name", http.StatusBadRequest)
		return
	}
	p, err := s.reg.get(parts[0])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	action := "state"
	if len(parts) == 2 && parts[1] != "" {
		action = parts[1]
	}

	switch action {
	case "state":
		s.poolState(w, r, p)
	case "seed":
		s.poolSeed(w, r, p)
	case "entropy":
		s.poolEntropy(w, r, p)
	case "restore":
		s.poolRestore(w, r, p)
	case "rand":
		s.poolRand(w, r, p)
	case "bytes":
		s.poolBytes(w, r, p)
	case "stats":
		s.poolStats(w, r, p)
	default:
		s.log.Debug().Str("action", action).Str("pool", p.cfg.Name).Msg("unknown pool action")
		http.Error(w, "unknown pool action", http.StatusNotFound)
	}
}

func (s *server) poolState(w http.ResponseWriter, r *http.Request, p *pool) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	s.writeState(w, p)
}

func (s *server) writeState(w http.ResponseWriter, p *pool) {
	st := p.src.State()
	resp := stateResponse{
		poolSummary: summarize(p.cfg, st.Counter),
		Pool:        hex.EncodeToString(st.Pool),
	}
	if snap, err := s.store.Get(p.cfg.Name); err == nil {
		resp.SavedAt = snap.SavedAt
	}
	writeJSON(w, http.StatusOK, resp)
}

// POST /pools/{name}/seed?hex=  or the raw body
func (s *server) poolSeed(w http.ResponseWriter, r *http.Request, p *pool) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	v, err := inputBytes(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	e, err := s.reg.mutate(p, store.OpSeed, v, func(src prng.Source) error {
		src.Seed(v)
		return nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.log.Info().Str("pool", p.cfg.Name).Int("bytes", len(v)).Int("journal", e.Index).Msg("seeded pool")
	s.writeState(w, p)
}

// POST /pools/{name}/entropy?source=os|jitter|http|mix, ?hex= or the raw body
func (s *server) poolEntropy(w http.ResponseWriter, r *http.Request, p *pool) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	source := strings.ToLower(r.URL.Query().Get("source"))
	var block []byte
	var err error
	if source != "" {
		block, err = s.collector.Collect(r.Context(), source, p.cfg.PoolBytes)
	} else {
		source = "caller"
		block, err = inputBytes(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	e, err := s.reg.mutate(p, store.OpEntropy, block, func(src prng.Source) error {
		return src.AddEntropy(block)
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.log.Info().Str("pool", p.cfg.Name).Str("source", source).Int("journal", e.Index).Msg("added entropy")
	writeJSON(w, http.StatusOK, entropyResponse{Pool: p.cfg.Name, Source: source, Bytes: len(block), Entry: e.Index})
}

// POST /pools/{name}/restore with a body of the shape /state returns:
// {"pool": "<hex>", "counter": n}
func (s *server) poolRestore(w http.ResponseWriter, r *http.Request, p *pool) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req restoreRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUpload)).Decode(&req); err != nil {
		http.Error(w, "decode state: "+err.Error(), http.StatusBadRequest)
		return
	}
	contents, err := hex.DecodeString(req.Pool)
	if err != nil {
		http.Error(w, "decode pool: "+err.Error(), http.StatusBadRequest)
		return
	}
	e, err := s.reg.restore(p, prng.State{Pool: contents, Counter: req.Counter})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.log.Info().Str("pool", p.cfg.Name).Uint64("counter", req.Counter).Int("journal", e.Index).Msg("restored pool")
	s.writeState(w, p)
}

// GET /pools/{name}/rand?width=1|2|4|8
func (s *server) poolRand(w http.ResponseWriter, r *http.Request, p *pool) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	width := atoi(r.URL.Query().Get("width"), 4)
	if width != 1 && width != 2 && width != 4 && width != 8 {
		http.Error(w, "width must be 1, 2, 4 or 8", http.StatusBadRequest)
		return
	}
	var v uint64
	counter, err := s.reg.draw(p, func(src prng.Source) {
		switch width {
		case 1:
			v = uint64(prng.Rand[uint8](src))
		case 2:
			v = uint64(prng.Rand[uint16](src))
		case 4:
			v = uint64(prng.Rand[uint32](src))
		case 8:
			v = prng.Rand[uint64](src)
		}
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, randResponse{
		Pool:    p.cfg.Name,
		Width:   width,
		Value:   v,
		Hex:     leHex(v, width),
		Counter: counter,
	})
}

// readBits performs one extraction covering n bits and zeroes the unused low
// bits of the last byte.
func (s *server) readBits(p *pool, n int) ([]byte, error) {
	data := make([]byte, (n+7)/8)
	if _, err := s.reg.draw(p, func(src prng.Source) { _, _ = src.Read(data) }); err != nil {
		return nil, err
	}
	if n%8 != 0 {
		data[len(data)-1] &= byte(0xff) << (8 - uint(n%8))
	}
	return data, nil
}

// GET /pools/{name}/bytes?n=64&format=hex|bin|raw&type=txt|bin
//
// hex (default) writes the packed bytes hex-encoded, raw writes them as is
// and bin writes exactly n '0'/'1' characters, MSB-first per byte. type only
// selects the attachment extension and content type.
func (s *server) poolBytes(w http.ResponseWriter, r *http.Request, p *pool) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	n, err := s.bitCount(r, p.cfg.PoolBytes*8)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	format := strings.ToLower(q.Get("format"))
	if format == "" {
		format = "hex"
	}
	if format != "hex" && format != "raw" && format != "bin" {
		http.Error(w, "format must be hex, raw or bin", http.StatusBadRequest)
		return
	}
	data, err := s.readBits(p, n)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	contentType, ext := "text/plain", "txt"
	switch strings.ToLower(q.Get("type")) {
	case "bin":
		contentType, ext = "application/octet-stream", "bin"
	case "txt":
	default:
		if format == "raw" {
			contentType, ext = "application/octet-stream", "bin"
		}
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", p.cfg.Name+"."+ext))

	switch format {
	case "raw":
		_, _ = w.Write(data)
	case "bin":
		out := make([]byte, 0, n)
		for _, b := range stats.Unpack(data, n) {
			out = append(out, '0'+b)
		}
		_, _ = w.Write(out)
	default:
		_, _ = w.Write([]byte(hex.EncodeToString(data)))
	}
}

// reportFor picks the report named by the suite query parameter, core by
// default.
func reportFor(r *http.Request) (func(stats.Bits) []stats.Row, error) {
	switch suite := strings.ToLower(r.URL.Query().Get("suite")); suite {
	case "", "core":
		return stats.Report, nil
	case "full":
		return stats.FullReport, nil
	default:
		return nil, fmt.Errorf("%w: %q, want core or full", errUnknownSuite, suite)
	}
}

// GET /pools/{name}/stats?n=bits&suite=core|full
func (s *server) poolStats(w http.ResponseWriter, r *http.Request, p *pool) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	n, err := s.bitCount(r, 100_000)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	report, err := reportFor(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	data, err := s.readBits(p, n)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rows := report(stats.Unpack(data, n))
	writeJSON(w, http.StatusOK, statsResponse{Pool: p.cfg.Name, N: n, Passed: stats.AllPassed(rows), Report: rows})
}

// POST /stats?mode=txt|bin01|binpacked&suite=core|full
//
// The body is a bit string or binary data. A multipart form carries the
// sequence in the "file" field (or the first file), or as text in "bits";
// the mode may come from a "mode" field and, for files, defaults to one
// picked from the file extension.
func (s *server) uploadStatsHandler(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	mode, err := stats.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	report, err := reportFor(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var bits stats.Bits
	if ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); ct == "multipart/form-data" {
		bits, err = bitsFromMultipart(r, mode)
	} else {
		var body []byte
		body, err = io.ReadAll(io.LimitReader(r.Body, maxUpload))
		if err != nil {
			err = fmt.Errorf("%w: read body: %v", errBadUpload, err)
		} else {
			bits, err = parseUpload(body, mode)
		}
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rows := report(bits)
	writeJSON(w, http.StatusOK, statsResponse{N: len(bits), Passed: stats.AllPassed(rows), Report: rows})
}

func bitsFromMultipart(r *http.Request, mode stats.Mode) (stats.Bits, error) {
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		return nil, fmt.Errorf("%w: parse form: %v", errBadUpload, err)
	}
	if mode == stats.ModeAuto {
		m, err := stats.ParseMode(r.FormValue("mode"))
		if err != nil {
			return nil, err
		}
		mode = m
	}
	fh := uploadedFile(r.MultipartForm)
	if fh == nil {
		if v := r.FormValue("bits"); v != "" {
			return parseUpload([]byte(v), mode)
		}
		return nil, fmt.Errorf("%w: form has no file and no bits field", errBadUpload)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", errBadUpload, fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxUpload))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", errBadUpload, fh.Filename, err)
	}
	if mode == stats.ModeAuto {
		mode = stats.ModeForFile(fh.Filename, data)
	}
	return parseUpload(data, mode)
}

func parseUpload(data []byte, mode stats.Mode) (stats.Bits, error) {
	bits, err := stats.Parse(data, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errBadUpload, err)
	}
	return bits, nil
}

// uploadedFile returns the "file" field or else the first file by field name.
func uploadedFile(form *multipart.Form) *multipart.FileHeader {
	if form == nil || len(form.File) == 0 {
		return nil
	}
	if fhs := form.File["file"]; len(fhs) > 0 {
		return fhs[0]
	}
	names := make([]string, 0, len(form.File))
	for name := range form.File {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if fhs := form.File[name]; len(fhs) > 0 {
			return fhs[0]
		}
	}
	return nil
}

// GET /journal?pool=
func (s *server) journalHandler(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, s.store.Journal(r.URL.Query().Get("pool")))
}

func (s *server) verifyHandler(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	resp := verifyResponse{Valid: true, Entries: len(s.store.Journal(""))}
	if err := s.store.Verify(); err != nil {
		resp.Valid = false
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}
