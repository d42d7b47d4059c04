package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taskflowpro/taskflow-api/internal/usecase"
)

const (
	msgSignupOTPSent   = "OTP sent to your email for signup verification"
	msgLoginOTPSent    = "OTP sent to your email for login verification"
	msgOTPResent       = "OTP resent to your email"
	msgOTPInvalid      = "Invalid or expired OTP"
	msgOTPExpired      = "OTP expired. Please start again."
	msgOTPFlowFailed   = "failed to process OTP request"
	msgOTPVerifyFailed = "failed to verify OTP"
)

var otpVerifyErrorCases = append([]ErrorCase{
	{Err: usecase.ErrOTPInvalidOrExpired, Status: http.StatusBadRequest, Message: msgOTPInvalid},
	{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: msgUserNotFound},
}, credentialErrorCases...)

// OTPHandler exposes the emailed one-time passcode flows.
type OTPHandler struct {
	otp    *usecase.OTPService
	logger *zap.Logger
}

// NewOTPHandler constructs OTPHandler.
func NewOTPHandler(otp *usecase.OTPService, log *zap.Logger) *OTPHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &OTPHandler{otp: otp, logger: log}
}

// RequestSignup validates the signup fields and emails a code.
func (h *OTPHandler) RequestSignup(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, msgInvalidPayload)
		return
	}

	issue, err := h.otp.IssueSignupChallenge(c.Request.Context(), req.credentials())
	if err != nil {
		RespondWithMappedError(c, h.logger, err, credentialErrorCases, http.StatusInternalServerError, msgOTPFlowFailed)
		return
	}

	c.JSON(http.StatusOK, OTPIssuedResponse{OTPID: issue.ChallengeID, ExpiresAt: issue.ExpiresAt.UTC(), Message: msgSignupOTPSent})
}

// VerifySignup consumes a signup code and creates the account.
func (h *OTPHandler) VerifySignup(c *gin.Context) {
	var req VerifySignupOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, msgInvalidPayload)
		return
	}

	result, err := h.otp.VerifySignupChallenge(c.Request.Context(), usecase.SignupVerification{
		ChallengeID: req.OTPID,
		Code:        req.Code,
		Credentials: usecase.Credentials{Email: req.Email, Password: req.Password, FullName: req.FullName},
	})
	if err != nil {
		RespondWithMappedError(c, h.logger, err, otpVerifyErrorCases, http.StatusInternalServerError, msgOTPVerifyFailed)
		return
	}

	c.JSON(http.StatusOK, newAuthResponse(result))
}

// RequestLogin checks the password and emails a login code.
func (h *OTPHandler) RequestLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, msgInvalidPayload)
		return
	}

	issue, err := h.otp.IssueLoginChallenge(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		RespondWithMappedError(c, h.logger, err, []ErrorCase{
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusBadRequest, Message: msgIncorrectLogin},
		}, http.StatusInternalServerError, msgOTPFlowFailed)
		return
	}

	c.JSON(http.StatusOK, OTPIssuedResponse{OTPID: issue.ChallengeID, ExpiresAt: issue.ExpiresAt.UTC(), Message: msgLoginOTPSent})
}

// VerifyLogin consumes a login code and signs the user in.
func (h *OTPHandler) VerifyLogin(c *gin.Context) {
	var req VerifyLoginOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, msgInvalidPayload)
		return
	}

	result, err := h.otp.VerifyLoginChallenge(c.Request.Context(), req.OTPID, req.Code)
	if err != nil {
		RespondWithMappedError(c, h.logger, err, otpVerifyErrorCases, http.StatusInternalServerError, msgOTPVerifyFailed)
		return
	}

	c.JSON(http.StatusOK, newAuthResponse(result))
}

// Resend rotates the code of a pending challenge.
func (h *OTPHandler) Resend(c *gin.Context) {
	var req ResendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, msgInvalidPayload)
		return
	}

	issue, err := h.otp.ResendChallenge(c.Request.Context(), req.OTPID)
	if err != nil {
		RespondWithMappedError(c, h.logger, err, []ErrorCase{
			{Err: usecase.ErrOTPExpired, Status: http.StatusBadRequest, Message: msgOTPExpired},
		}, http.StatusInternalServerError, msgOTPFlowFailed)
		return
	}

	c.JSON(http.StatusOK, OTPResentResponse{Message: msgOTPResent, ExpiresAt: issue.ExpiresAt.UTC()})
}
