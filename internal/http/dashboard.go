package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"librarium/internal/entities"
)

// EntityCounter reports how many rows an entity table holds.
type EntityCounter interface {
	CountAll() (int64, error)
}

// UserCounter reports user totals for the admin dashboard.
type UserCounter interface {
	Count() (int64, error)
	CountByRole() (map[entities.UserRole]int64, error)
}

// DashboardLibraryStore lists libraries for dashboard summaries.
type DashboardLibraryStore interface {
	List(query string, limit, offset int) ([]entities.Library, int64, error)
	CountAll() (int64, error)
}

// DashboardController serves per-role summary views. Route registration
// decides which roles may reach which dashboard.
type DashboardController struct {
	users      UserCounter
	books      EntityCounter
	authors    EntityCounter
	libraries  DashboardLibraryStore
	librarians EntityCounter
}

func NewDashboardController(users UserCounter, books, authors EntityCounter, libraries DashboardLibraryStore, librarians EntityCounter) *DashboardController {
	return &DashboardController{
		users:      users,
		books:      books,
		authors:    authors,
		libraries:  libraries,
		librarians: librarians,
	}
}

// AdminDashboard summarizes users and the catalog.
// GET /api/dashboard/admin
func (dc *DashboardController) AdminDashboard(c *gin.Context) {
	totalUsers, err := dc.users.Count()
	if err != nil {
		respondInternalError(c, err, "admin dashboard")
		return
	}
	byRole, err := dc.users.CountByRole()
	if err != nil {
		respondInternalError(c, err, "admin dashboard")
		return
	}
	catalog, err := dc.catalogCounts()
	if err != nil {
		respondInternalError(c, err, "admin dashboard")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"role": entities.UserRoleAdmin,
		"users": gin.H{
			"total":   totalUsers,
			"by_role": byRole,
		},
		"catalog": catalog,
	})
}

// LibrarianDashboard summarizes the catalog and lists the libraries.
// GET /api/dashboard/librarian
func (dc *DashboardController) LibrarianDashboard(c *gin.Context) {
	catalog, err := dc.catalogCounts()
	if err != nil {
		respondInternalError(c, err, "librarian dashboard")
		return
	}
	libraries, _, err := dc.libraries.List("", 0, 0)
	if err != nil {
		respondInternalError(c, err, "librarian dashboard")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"role":      entities.UserRoleLibrarian,
		"catalog":   catalog,
		"libraries": libraries,
	})
}

// MemberDashboard shows members what there is to read and where.
// GET /api/dashboard/member
func (dc *DashboardController) MemberDashboard(c *gin.Context) {
	books, err := dc.books.CountAll()
	if err != nil {
		respondInternalError(c, err, "member dashboard")
		return
	}
	authors, err := dc.authors.CountAll()
	if err != nil {
		respondInternalError(c, err, "member dashboard")
		return
	}
	libraries, _, err := dc.libraries.List("", 0, 0)
	if err != nil {
		respondInternalError(c, err, "member dashboard")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"role":      entities.UserRoleMember,
		"books":     books,
		"authors":   authors,
		"libraries": libraries,
	})
}

func (dc *DashboardController) catalogCounts() (gin.H, error) {
	books, err := dc.books.CountAll()
	if err != nil {
		return nil, err
	}
	authors, err := dc.authors.CountAll()
	if err != nil {
		return nil, err
	}
	libraries, err := dc.libraries.CountAll()
	if err != nil {
		return nil, err
	}
	librarians, err := dc.librarians.CountAll()
	if err != nil {
		return nil, err
	}
	return gin.H{
		"books":      books,
		"authors":    authors,
		"libraries":  libraries,
		"librarians": librarians,
	}, nil
}
