package http

import (
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/layer-3/fluxauth/core"
	"github.com/layer-3/fluxauth/service"
)

// Handlers contains HTTP handlers for the identity endpoints
type Handlers struct {
	issuer     *service.Issuer
	login      *service.LoginService
	signatures *service.SignatureService
	sessions   *service.SessionManager
	waiter     *service.Waiter
	logger     *slog.Logger
}

// signedRequest is the body of verifylogin and providesign. zelid and
// loginPhrase are accepted as aliases of address and message.
type signedRequest struct {
	Address     string `json:"address" form:"address"`
	Zelid       string `json:"zelid" form:"zelid"`
	Message     string `json:"message" form:"message"`
	LoginPhrase string `json:"loginPhrase" form:"loginPhrase"`
	Signature   string `json:"signature" form:"signature"`
}

func (r signedRequest) address() string {
	if r.Zelid != "" {
		return r.Zelid
	}
	return r.Address
}

func (r signedRequest) message() string {
	if r.LoginPhrase != "" {
		return r.LoginPhrase
	}
	return r.Message
}

type phraseRequest struct {
	LoginPhrase string `json:"loginPhrase" form:"loginPhrase"`
}

type privilegeRequest struct {
	Zelid     string `json:"zelid" form:"zelid"`
	Signature string `json:"signature" form:"signature"`
}

// bind decodes a JSON or form body. A body sent without a content type is
// treated as JSON.
func bind(c *gin.Context, dst any) error {
	var err error
	ct := c.ContentType()
	if ct == "" || strings.HasSuffix(ct, "json") {
		err = c.ShouldBindBodyWith(dst, binding.JSON)
	} else {
		err = c.ShouldBind(dst)
	}
	if err != nil {
		return &core.Error{Kind: core.KindValidation, Reason: core.ReasonInvalidRequest, Err: err}
	}
	return nil
}

// LoginPhrase issues a phrase after the health gates pass.
func (h *Handlers) LoginPhrase(c *gin.Context) {
	phrase, err := h.issuer.IssuePhrase(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondData(c, phrase.Phrase)
}

// EmergencyPhrase issues a phrase without consulting the health gates.
func (h *Handlers) EmergencyPhrase(c *gin.Context) {
	phrase, err := h.issuer.IssueEmergencyPhrase(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondData(c, phrase.Phrase)
}

// VerifyLogin handles a signed phrase and creates a session.
func (h *Handlers) VerifyLogin(c *gin.Context) {
	var req signedRequest
	if err := bind(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}

	res, err := h.login.VerifyLogin(c.Request.Context(), req.address(), req.message(), req.Signature)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondData(c, res)
}

// ProvideSign stores a signature for a device waiting on its identifier.
func (h *Handlers) ProvideSign(c *gin.Context) {
	var req signedRequest
	if err := bind(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}

	pending, err := h.signatures.ProvideSignature(c.Request.Context(), req.address(), req.message(), req.Signature)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondData(c, pending)
}

func (h *Handlers) ActiveLoginPhrases(c *gin.Context) {
	phrases, err := h.sessions.ListActivePhrases(c.Request.Context(), credentialsFrom(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondData(c, phrases)
}

func (h *Handlers) LoggedUsers(c *gin.Context) {
	users, err := h.sessions.ListLoggedUsers(c.Request.Context(), credentialsFrom(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondData(c, users)
}

func (h *Handlers) LoggedSessions(c *gin.Context) {
	sessions, err := h.sessions.ListOwnSessions(c.Request.Context(), credentialsFrom(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondData(c, sessions)
}

func (h *Handlers) LogoutCurrentSession(c *gin.Context) {
	if err := h.sessions.LogoutCurrent(c.Request.Context(), credentialsFrom(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondMessage(c, statusSuccess, "Successfully logged out")
}

func (h *Handlers) LogoutSpecificSession(c *gin.Context) {
	var req phraseRequest
	if err := bind(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}

	removed, err := h.sessions.LogoutByPhrase(c.Request.Context(), credentialsFrom(c), req.LoginPhrase)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if !removed {
		respondMessage(c, statusWarning, core.ReasonAlreadyLoggedOut)
		return
	}
	respondMessage(c, statusSuccess, "Session successfully logged out")
}

func (h *Handlers) LogoutAllSessions(c *gin.Context) {
	if _, err := h.sessions.LogoutAllOfUser(c.Request.Context(), credentialsFrom(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondMessage(c, statusSuccess, "Successfully logged out all sessions")
}

func (h *Handlers) LogoutAllUsers(c *gin.Context) {
	if _, err := h.sessions.LogoutAllUsers(c.Request.Context(), credentialsFrom(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondMessage(c, statusSuccess, "Successfully logged out all users")
}

// CheckPrivilege reports the tier of the credentials in the body.
func (h *Handlers) CheckPrivilege(c *gin.Context) {
	var req privilegeRequest
	if err := bind(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}

	tier, err := h.sessions.WhoAmI(c.Request.Context(), core.Credentials{Address: req.Zelid, Signature: req.Signature})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if !tier.Authenticated() {
		respondMessage(c, statusError, core.TierNone.String())
		return
	}
	respondMessage(c, statusSuccess, tier.String())
}

func (h *Handlers) Health(c *gin.Context) {
	respondMessage(c, statusSuccess, "ok")
}
