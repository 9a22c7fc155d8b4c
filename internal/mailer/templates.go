package mailer

import "html/template"

type emailData struct {
	Link string
}

const layout = `<div style="max-width: 600px; margin: 0 auto; padding: 20px; font-family: Arial, sans-serif;">
  <h2 style="color: #16a34a;">{{template "heading"}}</h2>
  <p>{{template "intro"}}</p>
  <a href="{{.Link}}" style="display: inline-block; background-color: #16a34a; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; margin: 20px 0;">{{template "button"}}</a>
  <p>If the button doesn't work, you can copy and paste this link into your browser:</p>
  <p style="word-break: break-all; color: #666;">{{.Link}}</p>
  <p>This link will expire in {{template "expiry"}}.</p>
  <hr style="margin: 30px 0; border: none; border-top: 1px solid #eee;">
  <p style="color: #666; font-size: 14px;">{{template "footer"}}</p>
</div>`

var (
	verifyTmpl = template.Must(template.Must(template.New("verify").Parse(layout)).Parse(`
{{define "heading"}}Welcome to Crop Care!{{end}}
{{define "intro"}}Thank you for signing up. Please verify your email address by clicking the button below:{{end}}
{{define "button"}}Verify Email Address{{end}}
{{define "expiry"}}24 hours{{end}}
{{define "footer"}}If you didn't create an account, you can safely ignore this email.{{end}}`))

	resetTmpl = template.Must(template.Must(template.New("reset").Parse(layout)).Parse(`
{{define "heading"}}Password Reset Request{{end}}
{{define "intro"}}You requested to reset your password. Click the button below to set a new password:{{end}}
{{define "button"}}Reset Password{{end}}
{{define "expiry"}}1 hour{{end}}
{{define "footer"}}If you didn't request this password reset, you can safely ignore this email.{{end}}`))
)
