package controller

import (
	"errors"
	"interview_pilot_backend/internal/service"
	"interview_pilot_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CandidateController 候选人侧入口：建档、资料收集对话、简历上传
type CandidateController struct {
	Preflight *service.PreflightService
	Resumes   *service.ResumeService
}

func NewCandidateController(preflight *service.PreflightService, resumes *service.ResumeService) *CandidateController {
	return &CandidateController{Preflight: preflight, Resumes: resumes}
}

// Create godoc
// @Summary 新建候选人
// @Description 分配候选人 id 并返回带欢迎语的初始会话
// @Tags 候选人
// @Produce  json
// @Success 201 {object} util.Response{data=object}
// @Router /api/candidates [post]
func (c *CandidateController) Create(ctx *gin.Context) {
	id := uuid.New().String()
	st, err := c.Preflight.Greet(id)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Created(ctx, gin.H{"candidateId": id, "session": st})
}

// Greet godoc
// @Summary 资料收集对话开场
// @Description 首次访问时创建候选人会话并返回欢迎语与第一个问题
// @Tags 候选人
// @Produce  json
// @Param   id path string true "候选人 id"
// @Success 200 {object} util.Response{data=model.InterviewState}
// @Router /api/candidates/{id}/chat [get]
func (c *CandidateController) Greet(ctx *gin.Context) {
	st, err := c.Preflight.Greet(ctx.Param("id"))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, st)
}

type ChatRequest struct {
	Text string `json:"text" binding:"required"`
}

// Chat godoc
// @Summary 资料收集对话消息
// @Description 按姓名、邮箱、电话的固定顺序校验并收集缺失字段，
// 收齐后自动开始面试
// @Tags 候选人
// @Accept  json
// @Produce  json
// @Param   id path string true "候选人 id"
// @Param   body body ChatRequest true "消息内容"
// @Success 200 {object} util.Response{data=model.InterviewState}
// @Failure 409 {object} util.Response "会话已不在资料收集阶段"
// @Router /api/candidates/{id}/chat [post]
func (c *CandidateController) Chat(ctx *gin.Context) {
	var req ChatRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	st, err := c.Preflight.HandleMessage(ctx.Request.Context(), ctx.Param("id"), req.Text)
	if err != nil {
		if errors.Is(err, util.ErrInterviewCompleted) {
			util.Conflict(ctx, "profile collection already finished")
			return
		}
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, st)
}

// UploadResume godoc
// @Summary 上传简历
// @Description 解析简历文本回填空缺资料字段，文件本体落对象存储
// @Tags 候选人
// @Accept  multipart/form-data
// @Produce  json
// @Param   id path string true "候选人 id"
// @Param   file formData file true "简历文件"
// @Success 200 {object} util.Response{data=model.ParsedResume}
// @Failure 400 {object} util.Response "不支持的文件类型"
// @Router /api/candidates/{id}/resume [post]
func (c *CandidateController) UploadResume(ctx *gin.Context) {
	header, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "missing file")
		return
	}
	file, err := header.Open()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer file.Close()

	parsed, err := c.Resumes.Ingest(ctx.Request.Context(), ctx.Param("id"),
		header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrResumeUnsupported):
			util.BadRequest(ctx, err.Error())
		case errors.Is(err, util.ErrCandidateNotFound):
			util.NotFound(ctx, err.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, parsed)
}
