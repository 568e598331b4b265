package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/genesoftai/genesoft-core-api-sub001/handlers"
	"github.com/genesoftai/genesoft-core-api-sub001/services"
	"github.com/genesoftai/genesoft-core-api-sub001/store"
	"github.com/genesoftai/genesoft-core-api-sub001/workflows"

	"github.com/dbos-inc/dbos-transact-golang/dbos"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	// Load .env if present; real environments set variables directly.
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	// Connect to PostgreSQL for app data
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	log.Println("Connected to PostgreSQL database")

	// External collaborators
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		log.Fatal("ANTHROPIC_API_KEY environment variable is required")
	}
	agent := services.NewAnthropicAgent(apiKey)

	mailer := services.NewResendMailer(os.Getenv("RESEND_API_KEY"))
	emailFrom := os.Getenv("EMAIL_FROM")
	if emailFrom == "" {
		emailFrom = "notifications@genesoft.ai"
	}

	st := store.NewPostgresStore(db)
	conversationWorkflows := workflows.NewConversationWorkflows(st, agent, mailer, emailFrom)

	// Initialize DBOS context for durable workflows
	dbosCtx, err := dbos.NewDBOSContext(context.Background(), dbos.Config{
		DatabaseURL: dbURL,
		AppName:     "genesoft-core-api",
	})
	if err != nil {
		log.Fatalf("Failed to initialize DBOS: %v", err)
	}

	// Register workflows with DBOS (MUST be before Launch)
	dbos.RegisterWorkflow(dbosCtx, conversationWorkflows.CreateConversationWorkflow)
	dbos.RegisterWorkflow(dbosCtx, conversationWorkflows.TalkWorkflow)
	dbos.RegisterWorkflow(dbosCtx, conversationWorkflows.SubmitWorkflow)
	dbos.RegisterWorkflow(dbosCtx, conversationWorkflows.ArchiveWorkflow)

	// Launch DBOS (starts workflow recovery)
	if err := dbos.Launch(dbosCtx); err != nil {
		log.Fatalf("Failed to launch DBOS: %v", err)
	}
	defer dbos.Shutdown(dbosCtx, 5*time.Second)
	log.Println("DBOS initialized - durable workflows enabled")

	conversationHandler := handlers.NewConversationHandler(st, dbosCtx, conversationWorkflows)

	// Setup Gin router
	router := gin.Default()

	// Enable CORS for local development
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	// API routes
	api := router.Group("/api")
	{
		api.POST("/conversations", conversationHandler.CreateConversation)
		api.GET("/conversations", conversationHandler.ListConversations)
		api.GET("/conversations/:id", conversationHandler.GetConversation)
		api.POST("/conversations/:id/archive", conversationHandler.ArchiveConversation)
		api.POST("/conversations/:id/submit", conversationHandler.SubmitConversation)
		api.POST("/talk", conversationHandler.Talk)
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "dbos": "enabled"})
	})

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("Starting server on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
