package routes

import (
	"net/http"
	"strconv"

	"ia-assistant-platform/services"
	"ia-assistant-platform/utils"

	"github.com/gin-gonic/gin"
)

func SetupMediaRoutes(router gin.IRouter, blobs *services.BlobStore) {
	router.GET("/media/:name", HandleMediaDownload(blobs))
}

// HandleMediaDownload serves a stored original after checking the signed
// URL. No session is required; the signature alone gates access.
func HandleMediaDownload(blobs *services.BlobStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		expires, err := strconv.ParseInt(c.Query("expires"), 10, 64)
		if err != nil {
			utils.RespondWithError(c, http.StatusBadRequest,
				"invalid_expiry", "Missing or invalid expires parameter", nil)
			return
		}

		if err := blobs.Verify(name, expires, c.Query("sig")); err != nil {
			utils.RespondWithError(c, http.StatusForbidden,
				"invalid_signature", "Link is invalid or has expired", nil)
			return
		}

		path, err := blobs.Path(name)
		if err != nil {
			utils.RespondWithError(c, http.StatusNotFound,
				"not_found", "File not found", nil)
			return
		}
		c.File(path)
	}
}
