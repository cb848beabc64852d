package main

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"voicenote/audio"
	"voicenote/audioutil"
	"voicenote/editor"
	"voicenote/intake"
	"voicenote/log"
	"voicenote/session"
)

// TUI message types
type StatusMsg struct{ Snapshot session.Snapshot }
type RecordingTickMsg struct{ Seconds int }
type NoticeMsg struct{ Text string }
type CopiedMsg struct{ Copied bool }
type SavedMsg struct {
	Path string
	Err  error
}
type actionErrMsg struct{ Err error }

type tuiFocus int

const (
	focusControls tuiFocus = iota
	focusEditor
	focusPicker
)

type tuiModel struct {
	ctrl    *session.Controller
	editor  *editor.Buffer
	saveDir string

	snap       session.Snapshot
	seeded     string
	elapsed    int
	notice     string
	copied     bool
	savedPath  string
	modeLine   string
	deviceLine string
	focus      tuiFocus
	drop       intake.DropZone

	spinner  spinner.Model
	textarea textarea.Model
	picker   textinput.Model

	width, height int
}

var (
	tuiProgram *tea.Program
	tuiMu      sync.Mutex
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	recStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	keyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("160")).Bold(true)
	copiedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	processStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("33"))
	paneStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("238"))
	dropStyle    = lipgloss.NewStyle().Border(lipgloss.DoubleBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1)
)

func newTUIModel(ctrl *session.Controller, ed *editor.Buffer, saveDir string) tuiModel {
	ta := textarea.New()
	ta.Placeholder = "轉錄內容將顯示於此，您可以直接編輯..."
	ta.ShowLineNumbers = false
	ta.CharLimit = 0

	ti := textinput.New()
	ti.Placeholder = "/path/to/audio.m4a"
	ti.Prompt = "› "

	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(processStyle))

	return tuiModel{
		ctrl:     ctrl,
		editor:   ed,
		saveDir:  saveDir,
		snap:     ctrl.Snapshot(),
		spinner:  sp,
		textarea: ta,
		picker:   ti,
	}
}

func NewTUIProgram(m tuiModel) *tea.Program {
	return tea.NewProgram(m, tea.WithAltScreen())
}

func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// tuiSink forwards controller events into the running program.
type tuiSink struct{}

func (tuiSink) StatusChanged(s session.Snapshot) { tuiSend(StatusMsg{Snapshot: s}) }
func (tuiSink) RecordingTick(seconds int)        { tuiSend(RecordingTickMsg{Seconds: seconds}) }
func (tuiSink) Notice(msg string)                { tuiSend(NoticeMsg{Text: msg}) }

func (m tuiModel) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick)
}

func (m tuiModel) startStop() tea.Cmd {
	ctrl := m.ctrl
	recording := m.snap.Status == session.Recording
	return func() tea.Msg {
		var err error
		if recording {
			_, err = ctrl.StopRecording()
		} else {
			err = ctrl.StartRecording()
		}
		if err != nil {
			return actionErrMsg{Err: err}
		}
		return nil
	}
}

func (m tuiModel) selectFile(path string) tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		if _, err := ctrl.SelectFile(path); err != nil {
			return actionErrMsg{Err: err}
		}
		return nil
	}
}

func (m tuiModel) copyText() tea.Cmd {
	ed := m.editor
	return func() tea.Msg {
		// The indicator reverts through the editor's OnCopiedChange hook.
		if err := ed.Copy(); err != nil {
			return NoticeMsg{Text: "複製失敗：" + err.Error()}
		}
		return CopiedMsg{Copied: true}
	}
}

func (m tuiModel) save() tea.Cmd {
	ed, dir := m.editor, m.saveDir
	return func() tea.Msg {
		path, err := ed.Save(dir)
		return SavedMsg{Path: path, Err: err}
	}
}

func (m tuiModel) reset() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		if err := ctrl.Reset(); err != nil {
			return actionErrMsg{Err: err}
		}
		return nil
	}
}

// actionNotice maps an action error to what the user sees. Errors that
// already produced a controller notice return "".
func actionNotice(err error) string {
	switch {
	case errors.Is(err, session.ErrBusy):
		return "正在處理音訊，請稍候。"
	case errors.Is(err, session.ErrRecording):
		return "錄音中，請先停止錄音。"
	case errors.Is(err, audio.ErrMicrophone), intake.Notice(err) != "":
		return ""
	}
	return err.Error()
}

func (m tuiModel) layout() tuiModel {
	if m.width == 0 {
		return m
	}
	m.textarea.SetWidth(max(m.width-4, 10))
	m.textarea.SetHeight(max(m.height-12, 3))
	m.picker.Width = max(m.width-8, 10)
	return m
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m.layout(), nil

	case StatusMsg:
		prev := m.snap.Status
		m.snap = msg.Snapshot
		if m.snap.Status == session.Recording && prev != session.Recording {
			m.elapsed = 0
		}
		if m.snap.Status != session.Recording {
			m.notice = ""
		}
		if m.snap.Transcript != m.seeded {
			m.seeded = m.snap.Transcript
			m.textarea.SetValue(m.snap.Transcript)
		}
		if m.snap.Status == session.Processing {
			return m, m.spinner.Tick
		}
		return m, nil

	case RecordingTickMsg:
		m.elapsed = msg.Seconds
		return m, nil

	case NoticeMsg:
		m.notice = msg.Text
		return m, nil

	case CopiedMsg:
		m.copied = msg.Copied
		return m, nil

	case SavedMsg:
		if msg.Err != nil {
			m.notice = "存檔失敗：" + msg.Err.Error()
		} else {
			m.savedPath = msg.Path
		}
		return m, nil

	case actionErrMsg:
		if n := actionNotice(msg.Err); n != "" {
			m.notice = n
		}
		log.Warnf("tui action: %v", msg.Err)
		return m, nil

	case spinner.TickMsg:
		if m.snap.Status != session.Processing {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.focus {
		case focusEditor:
			return m.updateEditor(msg)
		case focusPicker:
			return m.updatePicker(msg)
		}
		return m.updateControls(msg)
	}

	if m.focus == focusEditor {
		var cmd tea.Cmd
		m.textarea, cmd = m.textarea.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m tuiModel) updateControls(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// A terminal drop arrives as a bracketed paste of the file path.
	if msg.Paste {
		m.drop.Enter()
		return m.dropPath(string(msg.Runes))
	}
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "r", " ":
		return m, m.startStop()
	case "o":
		if m.snap.Status.Busy() {
			m.notice = actionNotice(session.ErrBusy)
			return m, nil
		}
		m.focus = focusPicker
		m.drop.Enter()
		m.picker.SetValue("")
		return m, m.picker.Focus()
	case "e":
		m.focus = focusEditor
		return m, m.textarea.Focus()
	case "c":
		return m, m.copyText()
	case "s":
		return m, m.save()
	case "x":
		return m, m.reset()
	}
	return m, nil
}

func (m tuiModel) updateEditor(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "esc" {
		m.focus = focusControls
		m.textarea.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	m.editor.SetText(m.textarea.Value())
	return m, cmd
}

func (m tuiModel) updatePicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.drop.Leave()
		m.focus = focusControls
		m.picker.Blur()
		return m, nil
	case "enter":
		m.focus = focusControls
		m.picker.Blur()
		return m.dropPath(m.picker.Value())
	}
	if msg.Paste {
		m.focus = focusControls
		m.picker.Blur()
		return m.dropPath(string(msg.Runes))
	}
	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)
	return m, cmd
}

func (m tuiModel) dropPath(payload string) (tea.Model, tea.Cmd) {
	path, ok := m.drop.Drop(payload)
	if !ok {
		return m, nil
	}
	m.notice = ""
	m.savedPath = ""
	return m, m.selectFile(path)
}

func (m tuiModel) statusLine() string {
	switch m.snap.Status {
	case session.Recording:
		return recStyle.Render("● REC " + audioutil.FormatDuration(m.elapsed))
	case session.Processing:
		return m.spinner.View() + processStyle.Render(" 正在處理音訊...") +
			dimStyle.Render("  AI 正在分析語意並整理逐字稿")
	case session.Completed:
		return copiedStyle.Render("✓ 轉錄完成")
	case session.Failed:
		msg := m.snap.Error
		if msg == "" {
			msg = "發生未知錯誤"
		}
		return errorStyle.Render("✗ " + msg)
	}
	return dimStyle.Render("○ STANDBY")
}

func (m tuiModel) helpLine() string {
	var parts []string
	add := func(key, label string) {
		parts = append(parts, keyStyle.Render(key)+helpStyle.Render(" "+label))
	}
	switch m.focus {
	case focusEditor:
		add("esc", "done editing")
	case focusPicker:
		add("enter", "transcribe")
		add("esc", "cancel")
	default:
		if m.snap.Status == session.Recording {
			add("r", "stop")
		} else {
			add("r", "record")
		}
		add("o", "open file")
		add("e", "edit")
		add("c", "copy")
		add("s", "save")
		if m.snap.Status == session.Completed || m.snap.Status == session.Failed {
			add("x", "reset")
		}
		add("q", "quit")
	}
	return strings.Join(parts, helpStyle.Render(" · "))
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("智聲筆記") + dimStyle.Render(" voicenote "+version) + "\n")
	b.WriteString(m.statusLine() + "\n")
	if info := strings.TrimSpace(m.modeLine + "  " + m.deviceLine); info != "" {
		b.WriteString(dimStyle.Render(info) + "\n")
	}
	if m.notice != "" {
		b.WriteString(noticeStyle.Render("⚠ "+m.notice) + "\n")
	}
	b.WriteString("\n")

	if m.focus == focusPicker {
		prompt := "拖放音訊檔案至此，或輸入路徑 (MP3, WAV, M4A, AAC)"
		if !m.drop.Hovering() {
			prompt = "輸入路徑"
		}
		b.WriteString(dropStyle.Width(max(m.width-4, 10)).Render(prompt+"\n"+m.picker.View()) + "\n")
	}

	header := "智慧轉錄結果"
	if m.copied {
		header += "  " + copiedStyle.Render("[✓ 已複製]")
	}
	b.WriteString(header + "\n")
	b.WriteString(paneStyle.Render(m.textarea.View()) + "\n")
	b.WriteString(m.helpLine() + "\n")
	if m.savedPath != "" {
		b.WriteString(dimStyle.Render("saved " + m.savedPath))
	}
	return b.String()
}

func modeLineText(provider, model string) string {
	return fmt.Sprintf("[%s | %s]", provider, model)
}

func deviceLineText(dev *audio.DeviceInfo, available bool) string {
	if !available {
		return "mic: unavailable (file input only)"
	}
	name := "system default"
	if dev != nil {
		name = dev.Name
	}
	return "mic: " + name
}
