package controllers

import (
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/table-points/middlewares"
	"github.com/yeremiapane/table-points/models"
	"github.com/yeremiapane/table-points/utils"
	"gorm.io/gorm"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-z0-9._-]{3,20}$`)

	errBadCredentials = errors.New("Credenziali non valide")
)

type AuthController struct {
	DB         *gorm.DB
	Tokens     *utils.TokenService
	Blacklist  *utils.TokenBlacklist
	BcryptCost int
}

func NewAuthController(d Deps) *AuthController {
	return &AuthController{DB: d.DB, Tokens: d.Tokens, Blacklist: d.Blacklist, BcryptCost: d.BcryptCost}
}

// userView -> public shape of a user, never includes the hash
func userView(u models.User) gin.H {
	return gin.H{
		"id":        u.ID,
		"username":  u.Username,
		"email":     u.Email,
		"fullName":  u.FullName(),
		"role":      u.Role,
		"isActive":  u.IsActive,
		"lastLogin": u.LastLogin,
		"createdAt": u.CreatedAt,
	}
}

// Login accepts a username or an email in the "username" field.
func (ac *AuthController) Login(c *gin.Context) {
	var input struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("Username e password richiesti"))
		return
	}

	login := strings.ToLower(strings.TrimSpace(input.Username))
	var user models.User
	if err := ac.DB.Where("username = ? OR email = ?", login, login).First(&user).Error; err != nil {
		utils.RespondError(c, http.StatusUnauthorized, errBadCredentials)
		return
	}
	if !user.IsActive {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("Account disattivato. Contattare l'amministratore."))
		return
	}
	if !utils.VerifyPassword(user.Password, input.Password) {
		utils.RespondError(c, http.StatusUnauthorized, errBadCredentials)
		return
	}

	token, err := ac.Tokens.GenerateToken(user.ID, user.Role)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	now := time.Now().UTC()
	if err := ac.DB.Model(&user).UpdateColumn("last_login", now).Error; err != nil {
		utils.ErrorLogger.WithField("user_id", user.ID).Warnf("update last login: %v", err)
	}
	user.LastLogin = &now

	utils.InfoLogger.WithField("user_id", user.ID).Infof("login successful for %s (role=%s)", user.Username, user.Role)
	utils.RespondJSON(c, http.StatusOK, "Login effettuato con successo", gin.H{
		"user":  userView(user),
		"token": token,
	})
}

func (ac *AuthController) Me(c *gin.Context) {
	var user models.User
	if err := ac.DB.First(&user, middlewares.CurrentUserID(c)).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("Utente non trovato"))
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Profilo utente", gin.H{"user": userView(user)})
}

// Register creates a staff account; the route is admin only.
func (ac *AuthController) Register(c *gin.Context) {
	var input struct {
		Username  string `json:"username" binding:"required"`
		Email     string `json:"email" binding:"required,email"`
		Password  string `json:"password" binding:"required,min=6"`
		FirstName string `json:"firstName" binding:"required,min=2,max=30"`
		LastName  string `json:"lastName" binding:"required,min=2,max=30"`
		Role      string `json:"role"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	username := strings.ToLower(strings.TrimSpace(input.Username))
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if !usernamePattern.MatchString(username) {
		utils.RespondError(c, http.StatusBadRequest,
			errors.New("Username deve essere tra 3 e 20 caratteri: lettere, numeri, punti, trattini e underscore"))
		return
	}
	role := input.Role
	if role == "" {
		role = models.RoleCashier
	}
	if !models.IsValidRole(role) {
		utils.RespondError(c, http.StatusBadRequest, errors.New("Ruolo non valido"))
		return
	}

	var existing int64
	if err := ac.DB.Model(&models.User{}).Where("username = ? OR email = ?", username, email).Count(&existing).Error; err != nil {
		respondServiceError(c, err)
		return
	}
	if existing > 0 {
		utils.RespondError(c, http.StatusConflict, errors.New("Utente con questa email o username già esistente"))
		return
	}

	hashed, err := utils.HashPassword(input.Password, ac.BcryptCost)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	creator := middlewares.CurrentUserID(c)
	user := models.User{
		Username:  username,
		Email:     email,
		Password:  hashed,
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
		Role:      role,
		IsActive:  true,
		CreatedBy: &creator,
	}
	if err := ac.DB.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			utils.RespondError(c, http.StatusConflict, errors.New("Utente con questa email o username già esistente"))
			return
		}
		respondServiceError(c, err)
		return
	}

	token, err := ac.Tokens.GenerateToken(user.ID, user.Role)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.InfoLogger.WithField("created_by", creator).Infof("new user registered: %s (role=%s)", user.Username, user.Role)
	utils.RespondJSON(c, http.StatusCreated, "Utente registrato con successo", gin.H{
		"user":  userView(user),
		"token": token,
	})
}

// UpdateDetails changes the caller's own name and email.
func (ac *AuthController) UpdateDetails(c *gin.Context) {
	var input struct {
		FirstName *string `json:"firstName" binding:"omitempty,min=2,max=30"`
		LastName  *string `json:"lastName" binding:"omitempty,min=2,max=30"`
		Email     *string `json:"email" binding:"omitempty,email"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	changes := map[string]interface{}{}
	if input.FirstName != nil {
		changes["first_name"] = strings.TrimSpace(*input.FirstName)
	}
	if input.LastName != nil {
		changes["last_name"] = strings.TrimSpace(*input.LastName)
	}
	if input.Email != nil {
		changes["email"] = strings.ToLower(strings.TrimSpace(*input.Email))
	}

	var user models.User
	if err := ac.DB.First(&user, middlewares.CurrentUserID(c)).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("Utente non trovato"))
		return
	}
	if len(changes) > 0 {
		if err := ac.DB.Model(&user).Updates(changes).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				utils.RespondError(c, http.StatusConflict, errors.New("Email già in uso"))
				return
			}
			respondServiceError(c, err)
			return
		}
		if err := ac.DB.First(&user, user.ID).Error; err != nil {
			respondServiceError(c, err)
			return
		}
	}
	utils.RespondJSON(c, http.StatusOK, "Dettagli utente aggiornati", gin.H{"user": userView(user)})
}

// UpdatePassword requires the current password and returns a fresh token.
func (ac *AuthController) UpdatePassword(c *gin.Context) {
	var input struct {
		CurrentPassword string `json:"currentPassword" binding:"required"`
		NewPassword     string `json:"newPassword" binding:"required,min=6"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var user models.User
	if err := ac.DB.First(&user, middlewares.CurrentUserID(c)).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("Utente non trovato"))
		return
	}
	if !utils.VerifyPassword(user.Password, input.CurrentPassword) {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("Password corrente non valida"))
		return
	}

	hashed, err := utils.HashPassword(input.NewPassword, ac.BcryptCost)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if err := ac.DB.Model(&user).UpdateColumn("password", hashed).Error; err != nil {
		respondServiceError(c, err)
		return
	}
	ac.revokeCurrent(c)

	token, err := ac.Tokens.GenerateToken(user.ID, user.Role)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Password aggiornata con successo", gin.H{"token": token})
}

// Logout revokes the presented token until it would have expired anyway.
func (ac *AuthController) Logout(c *gin.Context) {
	ac.revokeCurrent(c)
	utils.RespondJSON(c, http.StatusOK, "Logout effettuato con successo", nil)
}

func (ac *AuthController) revokeCurrent(c *gin.Context) {
	token := c.GetString(middlewares.ContextToken)
	if token == "" || ac.Blacklist == nil {
		return
	}
	expires, ok := c.Get(middlewares.ContextTokenExpires)
	if !ok {
		return
	}
	if t, ok := expires.(time.Time); ok {
		ac.Blacklist.Add(token, t)
	}
}
