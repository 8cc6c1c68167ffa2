package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"legaldoc-backend/logger"
	"legaldoc-backend/storage"
)

// multipartOverhead is the slack allowed on top of the file limit for
// form fields and multipart framing
const multipartOverhead = 1 << 20

// RouterConfig carries everything the HTTP layer needs
type RouterConfig struct {
	Info           AppInfo
	Log            logger.ILogger
	Extractor      TextExtractor
	Analysis       AnalysisRunner
	Chat           ChatRunner
	Sessions       SessionStore
	Archive        storage.Archive
	MaxUploadBytes int64
	RequestTimeout time.Duration
	Debug          bool
	AllowedOrigins []string
}

// NewRouter builds the gin engine with every route registered
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Log == nil {
		cfg.Log = logger.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(CorrelationID())
	r.Use(RequestLogger(cfg.Log))
	r.Use(CORS(cfg.Debug, cfg.AllowedOrigins))
	r.MaxMultipartMemory = cfg.MaxUploadBytes + multipartOverhead

	system := NewSystemHandler(cfg.Info)
	documents := NewDocumentHandler(cfg.Extractor, cfg.Analysis, cfg.Archive, cfg.Log, cfg.MaxUploadBytes)
	chat := NewChatHandler(cfg.Extractor, cfg.Chat, cfg.Sessions, cfg.Archive, cfg.Log, cfg.MaxUploadBytes)

	r.GET("/", system.Root)
	r.GET("/health", system.Health)

	upload := r.Group("/", LimitBody(cfg.MaxUploadBytes+multipartOverhead), Timeout(cfg.RequestTimeout))
	{
		upload.POST("/analyze-document", documents.AnalyzeDocument)
		upload.POST("/chat", chat.Chat)
	}

	sessions := r.Group("/chat/sessions")
	{
		sessions.GET("/:id", chat.GetSession)
		sessions.GET("/:id/document", chat.GetSessionDocument)
		sessions.DELETE("/:id", chat.DeleteSession)
	}

	return r
}
