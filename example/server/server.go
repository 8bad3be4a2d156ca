package main

import (
	"flag"
	"io"
	"log"
	"net/http"
	"net/http/httputil"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-session/session/v3"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/kaz29/oauth-server/errors"
	"github.com/kaz29/oauth-server/generates"
	"github.com/kaz29/oauth-server/manage"
	"github.com/kaz29/oauth-server/migrate"
	"github.com/kaz29/oauth-server/models"
	"github.com/kaz29/oauth-server/seed"
	"github.com/kaz29/oauth-server/server"
	"github.com/kaz29/oauth-server/store"
)

var (
	dumpvar   bool
	idvar     string
	secretvar string
	urivar    string
)

func init() {
	flag.BoolVar(&dumpvar, "d", true, "Dump requests and responses")
	flag.StringVar(&idvar, "i", "222222", "The client id being passed in")
	flag.StringVar(&secretvar, "s", "22222222", "The client secret being passed in")
	flag.StringVar(&urivar, "r", "http://localhost:9094/oauth2", "The registered redirect uri")
}

func main() {
	flag.Parse()
	if dumpvar {
		log.Println("Dumping requests")
	}

	cfg := server.GetConfig()

	// Optionally run DB migrations and seed data before the server starts.
	// Configure via environment variables (see migrate.RunFromEnv docs):
	// MIGRATE_ON_START=1 MIGRATE_DRIVER=sqlite MIGRATE_DSN=./oauth-server.db
	if err := migrate.RunFromEnv(); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}
	if err := seed.RunFromEnv(); err != nil {
		log.Fatalf("seed failed: %v", err)
	}

	manager := manage.NewDefaultManager()
	manager.SetAuthorizeCodeTokenCfg(manage.DefaultAuthorizeCodeTokenCfg)

	switch cfg.Token.Store {
	case "valkey":
		ts, err := store.NewValkeyTokenStore(cfg.Token.ValkeyAddr, cfg.Token.ValkeyPrefix)
		if err != nil {
			log.Fatalf("valkey token store: %v", err)
		}
		manager.MapTokenStorage(ts)
		log.Printf("Using Valkey token store at %s", cfg.Token.ValkeyAddr)
	case "file":
		manager.MustTokenStorage(store.NewFileTokenStore(cfg.Token.File))
		log.Printf("Using file token store at %s", cfg.Token.File)
	default:
		manager.MustTokenStorage(store.NewMemoryTokenStore())
	}

	// opaque random tokens; switch to generates.NewJWTAccessGenerate for JWTs
	manager.MapAccessGenerate(generates.NewAccessGenerate())

	if dsn := cfg.ClientsDBDSN(); dsn != "" {
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			log.Fatalf("clients db: %v", err)
		}
		manager.MapClientStorage(store.NewDBClientStore(db))
		manager.MapScopeStorage(store.NewDBScopeStore(db))
		log.Println("Using database client/scope stores")
	} else {
		clientStore := store.NewClientStore()
		clientStore.Set(idvar, &models.Client{
			ID:          idvar,
			Secret:      secretvar,
			RedirectURI: urivar,
		})
		manager.MapClientStorage(clientStore)

		scopeStore := store.NewScopeStore()
		scopeStore.Set("read", &models.Scope{ID: "read", Description: "Read access"})
		scopeStore.Set("write", &models.Scope{ID: "write", Description: "Write access"})
		manager.MapScopeStorage(scopeStore)

		log.Printf("Registered OAuth2 client: id=%s redirect_uri=%s", idvar, urivar)
	}

	srv := server.NewServer(server.NewConfig(), manager)

	srv.SetOwnerAuthorizationHandler(ownerAuthorizeHandler)

	srv.SetInternalErrorHandler(func(err error) (re *errors.Response) {
		log.Println("Internal Error:", err.Error())
		return
	})

	srv.SetResponseErrorHandler(func(re *errors.Response) {
		log.Println("Response Error:", re.Error.Error())
	})

	engine := server.NewGinEngine(srv)

	engine.GET("/login", func(c *gin.Context) { loginHandler(c.Writer, c.Request) })
	engine.POST("/login", func(c *gin.Context) { loginHandler(c.Writer, c.Request) })
	engine.GET("/auth", func(c *gin.Context) { authHandler(c.Writer, c.Request) })

	resource := engine.Group("/")
	resource.Use(srv.TokenMiddleware())
	resource.GET("/test", func(c *gin.Context) {
		if dumpvar {
			_ = dumpRequest(os.Stdout, "test", c.Request)
		}
		ownerModel, ownerID := server.GetOwnerFromContext(c)
		ti, _ := c.Get("token_info")
		token := ti.(interface {
			GetAccessCreateAt() time.Time
			GetAccessExpiresIn() time.Duration
		})
		c.IndentedJSON(http.StatusOK, gin.H{
			"expires_in":  int64(time.Until(token.GetAccessCreateAt().Add(token.GetAccessExpiresIn())).Seconds()),
			"client_id":   server.GetClientIDFromContext(c),
			"owner_model": ownerModel,
			"owner_id":    ownerID,
			"scopes":      server.GetScopesFromContext(c),
		})
	})

	log.Printf("Server is running at %s.", cfg.Listen)
	log.Printf("Authorization endpoint: http://localhost%s/oauth/authorize", cfg.Listen)
	log.Printf("Token endpoint: http://localhost%s/oauth/token", cfg.Listen)
	log.Fatal(engine.Run(cfg.Listen))
}

func dumpRequest(writer io.Writer, header string, r *http.Request) error {
	data, err := httputil.DumpRequest(r, true)
	if err != nil {
		return err
	}
	writer.Write([]byte("\n" + header + ": \n"))
	writer.Write(data)
	return nil
}

func ownerAuthorizeHandler(w http.ResponseWriter, r *http.Request) (ownerModel, ownerID string, err error) {
	if dumpvar {
		_ = dumpRequest(os.Stdout, "ownerAuthorizeHandler", r)
	}
	store, err := session.Start(r.Context(), w, r)
	if err != nil {
		return
	}

	uid, ok := store.Get("LoggedInUserID")
	if !ok {
		if r.Form == nil {
			r.ParseForm()
		}
		store.Set("ReturnUri", r.Form)
		store.Save()

		w.Header().Set("Location", "/login")
		w.WriteHeader(http.StatusFound)
		return
	}

	ownerModel = "Users"
	ownerID = uid.(string)
	store.Delete("LoggedInUserID")
	store.Save()
	return
}

func loginHandler(w http.ResponseWriter, r *http.Request) {
	if dumpvar {
		_ = dumpRequest(os.Stdout, "login", r)
	}
	store, err := session.Start(r.Context(), w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if r.Method == "POST" {
		if r.Form == nil {
			if err := r.ParseForm(); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
		}

		if r.Form.Get("username") == "test" && r.Form.Get("password") == "test" {
			store.Set("LoggedInUserID", r.Form.Get("username"))
			store.Save()

			w.Header().Set("Location", "/auth")
			w.WriteHeader(http.StatusFound)
			return
		}
		http.Error(w, "Invalid username or password", http.StatusUnauthorized)
		return
	}
	outputHTML(w, r, "static/login.html")
}

func authHandler(w http.ResponseWriter, r *http.Request) {
	if dumpvar {
		_ = dumpRequest(os.Stdout, "auth", r)
	}
	store, err := session.Start(r.Context(), w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if _, ok := store.Get("LoggedInUserID"); !ok {
		w.Header().Set("Location", "/login")
		w.WriteHeader(http.StatusFound)
		return
	}

	outputHTML(w, r, "static/auth.html")
}

func outputHTML(w http.ResponseWriter, req *http.Request, filename string) {
	file, err := os.Open(filename)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	defer file.Close()
	fi, _ := file.Stat()
	http.ServeContent(w, req, file.Name(), fi.ModTime(), file)
}
