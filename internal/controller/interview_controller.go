package controller

import (
	"errors"
	"interview_pilot_backend/internal/service"
	"interview_pilot_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// InterviewController 面试会话生命周期与作答入口
type InterviewController struct {
	Interviews *service.InterviewService
	Hub        *service.SessionHub
}

func NewInterviewController(interviews *service.InterviewService, hub *service.SessionHub) *InterviewController {
	return &InterviewController{Interviews: interviews, Hub: hub}
}

func (c *InterviewController) respondStateErr(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrCandidateNotFound), errors.Is(err, util.ErrSessionNotFound):
		util.NotFound(ctx, err.Error())
	case errors.Is(err, util.ErrProfileIncomplete),
		errors.Is(err, util.ErrSessionNotRunning),
		errors.Is(err, util.ErrNoActiveQuestion):
		util.BadRequest(ctx, err.Error())
	case errors.Is(err, util.ErrInterviewCompleted):
		util.Conflict(ctx, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}

// GetState godoc
// @Summary 会话快照
// @Description 候选人当前面试会话的完整状态，不存在则创建新会话
// @Tags 面试
// @Produce  json
// @Param   id path string true "候选人 id"
// @Success 200 {object} util.Response{data=model.InterviewState}
// @Router /api/candidates/{id}/state [get]
func (c *InterviewController) GetState(ctx *gin.Context) {
	util.Success(ctx, c.Interviews.State(ctx.Param("id")))
}

// Start godoc
// @Summary 开始面试
// @Description 资料收集完成后进入 running 并下发第一题
// @Tags 面试
// @Produce  json
// @Param   id path string true "候选人 id"
// @Success 200 {object} util.Response{data=model.InterviewState}
// @Failure 400 {object} util.Response "资料未收集完整"
// @Failure 409 {object} util.Response "面试已结束"
// @Router /api/candidates/{id}/interview/start [post]
func (c *InterviewController) Start(ctx *gin.Context) {
	st, err := c.Interviews.Start(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		c.respondStateErr(ctx, err)
		return
	}
	util.Success(ctx, st)
}

// Pause godoc
// @Summary 暂停面试
// @Tags 面试
// @Produce  json
// @Param   id path string true "候选人 id"
// @Success 200 {object} util.Response{data=model.InterviewState}
// @Router /api/candidates/{id}/interview/pause [post]
func (c *InterviewController) Pause(ctx *gin.Context) {
	st, err := c.Interviews.Pause(ctx.Param("id"))
	if err != nil {
		c.respondStateErr(ctx, err)
		return
	}
	util.Success(ctx, st)
}

// Resume godoc
// @Summary 恢复面试
// @Tags 面试
// @Produce  json
// @Param   id path string true "候选人 id"
// @Success 200 {object} util.Response{data=model.InterviewState}
// @Router /api/candidates/{id}/interview/resume [post]
func (c *InterviewController) Resume(ctx *gin.Context) {
	st, err := c.Interviews.Resume(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		c.respondStateErr(ctx, err)
		return
	}
	util.Success(ctx, st)
}

// Reset godoc
// @Summary 重置面试
// @Description 清空全部进度回到资料收集阶段
// @Tags 面试
// @Produce  json
// @Param   id path string true "候选人 id"
// @Success 200 {object} util.Response{data=model.InterviewState}
// @Router /api/candidates/{id}/interview/reset [post]
func (c *InterviewController) Reset(ctx *gin.Context) {
	util.Success(ctx, c.Interviews.Reset(ctx.Param("id")))
}

type SubmitRequest struct {
	Text string `json:"text"`
}

// Submit godoc
// @Summary 提交当前题目答案
// @Tags 面试
// @Accept  json
// @Produce  json
// @Param   id path string true "候选人 id"
// @Param   body body SubmitRequest true "答案文本"
// @Success 200 {object} util.Response{data=model.InterviewState}
// @Failure 400 {object} util.Response "无进行中的题目"
// @Router /api/candidates/{id}/interview/submit [post]
func (c *InterviewController) Submit(ctx *gin.Context) {
	var req SubmitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	st, err := c.Interviews.Submit(ctx.Request.Context(), ctx.Param("id"), req.Text)
	if err != nil {
		c.respondStateErr(ctx, err)
		return
	}
	util.Success(ctx, st)
}

// Events 升级为 websocket，推送倒计时/出题/评分/完成事件
func (c *InterviewController) Events(ctx *gin.Context) {
	c.Hub.ServeWS(ctx.Writer, ctx.Request, ctx.Param("id"))
}
