// internal/logclass/corpus.go
package logclass

import "github.com/signalnine/hostwatch/internal/protocol"

// Sample is one labeled training line
type Sample struct {
	Text  string
	Label protocol.Label
}

// DefaultCorpus returns the hand-curated training lines. Raw syslog lines
// and already-cleaned lines are mixed; both are normalized before fitting.
func DefaultCorpus() []Sample {
	return []Sample{
		// security
		{"sshd[1235]: failed password for invalid user root from 10.0.0.5 port 55221 ssh2", protocol.LabelSecurity},
		{"sshd[1236]: failed password for invalid user admin from 10.0.0.5 port 55222 ssh2", protocol.LabelSecurity},
		{"sshd[1237]: failed password for root from 10.0.0.6 port 51432 ssh2", protocol.LabelSecurity},
		{"sshd[1238]: failed password for root from 10.0.0.6 port 51433 ssh2", protocol.LabelSecurity},
		{"unix_chkpwd[2720]: password check failed for user akashp", protocol.LabelSecurity},
		{"polkitd[745]: Authentication required but no agent is available", protocol.LabelSecurity},
		{"sudo[3001]: akash : tty=pts/0 ; pwd=/home/akash ; command=/bin/systemctl restart httpd", protocol.LabelSecurity},
		{"pam_unix(sshd:auth): authentication failure; user=akashp rhost=192.168.1.4", protocol.LabelSecurity},
		{"sshd-session[2718]: Failed password for akashp from 192.168.1.4 port 64215 ssh2", protocol.LabelSecurity},
		{"sshd-session[2691]: Connection reset by 192.168.1.4 port 64187 [preauth]", protocol.LabelSecurity},

		// error
		{"httpd[2224]: 500 internal server error get /api/v1/payments", protocol.LabelError},
		{"backup[4002]: backup failed: permission denied for /etc/shadow", protocol.LabelError},
		{"kernel: disk sda1 running out of space: 92% used", protocol.LabelError},
		{"kernel: cpu temperature above threshold, cpu clock throttled", protocol.LabelError},
		{"dnf[2835]: Error: Failed to download metadata for repo 'epel': Yum repo downloading error", protocol.LabelError},
		{"dnf[2835]: Curl error (28): Timeout was reached while downloading repo metadata", protocol.LabelError},
		{"systemd[1]: dnf-makecache.service: Main process exited, status=1/FAILURE", protocol.LabelError},

		// warning
		{"httpd[2223]: 404 not found get /does-not-exist", protocol.LabelWarning},
		{"kernel: disk sda1 usage back to normal: 70% used", protocol.LabelWarning},
		{"kernel: cpu temperature back to normal", protocol.LabelWarning},
		{"gnome-shell[1975]: g_object_ref: assertion 'G_IS_OBJECT (object)' failed", protocol.LabelWarning},
		{"kernel: clocksource watchdog on CPU0: kvm-clock retried 1 times before success", protocol.LabelWarning},
		{"rsyslogd[1009]: imjournal: journal files changed, reloading", protocol.LabelWarning},
		{"packagekitd[1580]: Failed to get cache filename for glibc-langpack-en", protocol.LabelWarning},

		// info
		{"systemd[1]: starting daily apt upgrade and clean activities", protocol.LabelInfo},
		{"systemd[1]: finished daily apt upgrade and clean activities", protocol.LabelInfo},
		{"cron[2001]: (root) cmd (/usr/lib64/sa/sa1 1 1)", protocol.LabelInfo},
		{"httpd[2222]: 200 ok get /index.html", protocol.LabelInfo},
		{"systemd[1]: started backup job daily-backup.service", protocol.LabelInfo},
		{"backup[4001]: backup completed successfully for /var/www", protocol.LabelInfo},
		{"systemd[1]: systemd-localed.service: Deactivated successfully", protocol.LabelInfo},
		{"systemd[1887]: Started Virtual filesystem metadata service", protocol.LabelInfo},
		{"systemd[1]: Starting dnf makecache", protocol.LabelInfo},
		{"dnf[2835]: CentOS Stream 9 - BaseOS metadata download successful", protocol.LabelInfo},
		{"systemd[1]: packagekit.service: Deactivated successfully", protocol.LabelInfo},

		// cleaned CentOS lines
		{"failed password for akashp from port 64215 ssh2", protocol.LabelSecurity},
		{"connection reset by remote host preauth", protocol.LabelSecurity},
		{"pam_unix(sshd:auth): authentication failure user rhost", protocol.LabelSecurity},
		{"password check failed for user akashp", protocol.LabelSecurity},

		{"error failed to download metadata for repo epel yum repo downloading error", protocol.LabelError},
		{"curl error 28 timeout was reached while downloading repo metadata", protocol.LabelError},
		{"dnf-makecache.service main process exited status failure", protocol.LabelError},

		{"g_object_ref assertion g_is_object object failed", protocol.LabelWarning},
		{"clocksource timekeeping watchdog on cpu0 kvm-clock retried 1 times before success", protocol.LabelWarning},
		{"imjournal journal files changed reloading", protocol.LabelWarning},
		{"failed to get cache filename for package glibc-langpack-en", protocol.LabelWarning},

		{"server listening on 0.0.0.0 port 22", protocol.LabelInfo},
		{"systemd localed service deactivated successfully", protocol.LabelInfo},
		{"starting dnf makecache", protocol.LabelInfo},
		{"crond root cmd run-parts /etc/cron.hourly", protocol.LabelInfo},
		{"sudo root tail iclim_centos_logs txt created", protocol.LabelInfo},
	}
}
